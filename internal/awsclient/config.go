package awsclient

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// fallbackRegion applies when neither AWS_REGION nor the shared config
// resolves a region.
const fallbackRegion = "us-east-1"

// LoadAWSConfig resolves the SDK configuration shared by every client.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithDefaultRegion(fallbackRegion))
	if err != nil {
		return sdkaws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
