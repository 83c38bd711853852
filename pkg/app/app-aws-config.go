package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// ErrNoAwsConfig is returned when no method can initialize an aws.Config.
var ErrNoAwsConfig = errors.New("no method to initialize aws.Config")

// GetAwsConfig builds the aws.Config for the S3 backend. A configured
// endpoint with static credentials wins (S3-compatible object stores),
// then an SSO profile, then the default credential chain.
func (s *App) GetAwsConfig() (cfg aws.Config, err error) {
	if s.cfg.S3endpoint != "" {
		s.log.Debug("Using configured S3 endpoint")
		staticResolver := aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
			return aws.Endpoint{
				PartitionID:       "aws",
				URL:               s.cfg.S3endpoint,
				SigningRegion:     s.cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		})

		cfg = aws.Config{
			Region:           s.cfg.S3Region,
			Credentials:      credentials.NewStaticCredentialsProvider(s.cfg.S3ApikKey, s.cfg.S3accessKey, ""),
			EndpointResolver: staticResolver,
		}
		return
	}

	if s.cfg.SsoAwsProfile != "" {
		s.log.Debug("Using SSO profile")
		cfg, err = config.LoadDefaultConfig(
			context.TODO(),
			config.WithSharedConfigProfile(s.cfg.SsoAwsProfile),
		)
		if err != nil {
			s.log.Error("Error loading SSO profile", slog.String("error", err.Error()))
			return cfg, fmt.Errorf("error loading SSO profile: %w", err)
		}
		s.log.Debug("SSO profile loaded")
		return cfg, nil
	}

	if s.cfg.S3ApikKey == "" && s.cfg.S3accessKey == "" {
		s.log.Debug("Using default credential chain")
		cfg, err = config.LoadDefaultConfig(context.TODO(), config.WithRegion(s.cfg.S3Region))
		if err != nil {
			s.log.Error("Error loading default config", slog.String("error", err.Error()))
			return cfg, fmt.Errorf("error loading default config: %w", err)
		}
		s.log.Debug("Default config loaded")
		return cfg, nil
	}
	return cfg, ErrNoAwsConfig
}
