// Package awsconf builds aws.Config values for the S3 and SQS clients.
package awsconf

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Options selects the region and optional static credentials.
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	MaxAttempts     int
	Timeout         time.Duration
}

// Load resolves the AWS configuration, preferring static credentials when
// both halves are present and the default chain otherwise.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				opts.AccessKeyID,
				opts.SecretAccessKey,
				"",
			),
		))
	}

	if opts.MaxAttempts > 0 {
		optFns = append(optFns, awsconfig.WithRetryMaxAttempts(opts.MaxAttempts))
	}

	if opts.Timeout > 0 {
		optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{
			Timeout: opts.Timeout,
		}))
	}

	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}
