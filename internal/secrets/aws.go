package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	smithy "github.com/aws/smithy-go"
)

// SecretsManagerAPI is the slice of the Secrets Manager client the store uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore reads JSON-object secrets from AWS Secrets Manager.
type AWSStore struct {
	client SecretsManagerAPI
}

func NewAWSStore(client SecretsManagerAPI) *AWSStore {
	return &AWSStore{client: client}
}

func (s *AWSStore) Lookup(ctx context.Context, name string) (map[string]string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, classify(name, err)
	}

	if out.SecretString == nil {
		return nil, fmt.Errorf("%w: secret %q has no string value", ErrSecretMalformed, name)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return nil, fmt.Errorf("%w: secret %q: %v", ErrSecretMalformed, name, err)
	}
	return values, nil
}

func classify(name string, err error) error {
	var notFound *smtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: ResourceNotFoundException: secret %q not found: %w", ErrSecretNotFound, name, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException":
			return fmt.Errorf("%w: ResourceNotFoundException: secret %q not found: %w", ErrSecretNotFound, name, err)
		case "AccessDeniedException", "UnrecognizedClientException", "InvalidSignatureException":
			return fmt.Errorf("%w: %s: %w", ErrSecretAccess, apiErr.ErrorCode(), err)
		}
	}
	return fmt.Errorf("get secret value %q: %w", name, err)
}
