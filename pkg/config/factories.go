package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/firnlab/firn/pkg/history"
	"github.com/firnlab/firn/pkg/repo"
)

// NewFilesystem returns the filesystem repository items read from.
func NewFilesystem() billy.Filesystem {
	return osfs.New("/")
}

// NewRegistry builds the format registry from configuration. The native
// formats are always present; when remote access is enabled an s3://
// format is registered in front of them, so URL classification wins over
// base-name globs like *.pik1 for remote paths.
func NewRegistry(ctx context.Context, cfg *Config) (*repo.FormatRegistry, error) {
	if !cfg.Remote.Enabled {
		return repo.DefaultRegistry(), nil
	}

	client, err := buildS3Client(ctx, &cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	registry := repo.NewFormatRegistry()
	registry.MustRegister(repo.Format{
		Name:  "s3",
		Globs: []string{"s3://*"},
		New: func(fs billy.Filesystem, name, fileName string) repo.Item {
			it, err := repo.NewS3Item(client, registry, name, fileName)
			if err != nil {
				// A malformed URL still gets a leaf so the failure
				// shows up in the tree instead of vanishing.
				return repo.NewUnknownFileItem(fs, name, fileName)
			}
			return it
		},
	})
	for _, f := range repo.DefaultRegistry().Formats() {
		registry.MustRegister(f)
	}
	return registry, nil
}

// buildS3Client assembles an S3 client from the remote configuration.
func buildS3Client(ctx context.Context, remote *RemoteConfig) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	// Set region
	configOptions = append(configOptions, awsConfig.WithRegion(remote.Region))

	// Set custom endpoint if provided (for MinIO, Localstack, etc.)
	if remote.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               remote.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Set credentials if provided, otherwise use default credential chain
	if remote.AccessKeyID != "" && remote.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			remote.AccessKeyID,
			remote.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Bound each request at the transport level
	if remote.Timeout > 0 {
		configOptions = append(configOptions, awsConfig.WithHTTPClient(&http.Client{
			Timeout: remote.Timeout,
		}))
	}

	// Load AWS config
	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Force path-style addressing for compatibility with MinIO/Localstack
		if remote.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return client, nil
}

// OpenHistory opens the recent-files store from configuration. Returns
// (nil, nil) when the history is disabled; callers treat a nil store as
// "do not record".
func OpenHistory(cfg *Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}

	dir := expandHome(cfg.History.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	store, err := history.Open(dir, cfg.History.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return store, nil
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
