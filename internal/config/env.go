package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
)

// LoadEnv populates the process environment for one service. Secrets
// from AWS Secrets Manager are applied first when a secret ID is
// configured, then a .env file fills in whatever the environment does
// not already carry. Local development keeps its .env file; deployed
// containers rely on injected variables and the secret.
func LoadEnv(defaultEnvPath string) {
	if err := applySecrets(); err != nil {
		log.Printf("AWS Secrets Manager unavailable, continuing without it: %v", err)
	}

	envFile := os.Getenv("ENV_FILE_PATH")
	if envFile == "" {
		envFile = defaultEnvPath
	}
	if godotenv.Load(envFile) == nil || godotenv.Load() == nil {
		return
	}
	// Inside a cluster the environment is injected, so a missing .env
	// file is the normal case there.
	if os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		log.Printf("No .env file at %s, using process environment as-is", envFile)
	}
}

// applySecrets fetches one JSON secret and copies its keys into the
// environment. Existing variables win unless overwrite is requested.
func applySecrets() error {
	secretID := os.Getenv("AWS_SECRETS_MANAGER_SECRET_ID")
	if secretID == "" {
		secretID = os.Getenv("AWS_SECRET_ID")
	}
	if secretID == "" {
		return nil
	}

	ctx := context.Background()
	payload, err := fetchSecret(ctx, secretID)
	if err != nil {
		return err
	}

	var values map[string]any
	if err := json.Unmarshal(payload, &values); err != nil {
		return fmt.Errorf("secret %s is not a JSON object: %w", secretID, err)
	}

	overwrite := strings.EqualFold(os.Getenv("AWS_SECRETS_MANAGER_OVERWRITE"), "true")
	applied := 0
	for key, value := range values {
		if !overwrite && os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("setting %s from secret %s: %w", key, secretID, err)
		}
		applied++
	}
	if applied > 0 {
		log.Printf("Applied %d variables from secret %s", applied, secretID)
	}
	return nil
}

func fetchSecret(ctx context.Context, secretID string) ([]byte, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("AWS_SECRETS_MANAGER_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	stage := os.Getenv("AWS_SECRETS_MANAGER_VERSION_STAGE")
	if stage == "" {
		stage = "AWSCURRENT"
	}

	output, err := secretsmanager.NewFromConfig(cfg).GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String(stage),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching secret %s: %w", secretID, err)
	}

	switch {
	case output.SecretString != nil:
		return []byte(*output.SecretString), nil
	case len(output.SecretBinary) > 0:
		return output.SecretBinary, nil
	}
	return nil, fmt.Errorf("secret %s has no payload", secretID)
}
