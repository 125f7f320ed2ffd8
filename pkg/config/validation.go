package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that
// cannot be expressed in tags.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The percentile window must be non-empty
	if cfg.Stats.PercentileLow >= cfg.Stats.PercentileHigh {
		return fmt.Errorf("stats: percentile_low (%v) must be below percentile_high (%v)",
			cfg.Stats.PercentileLow, cfg.Stats.PercentileHigh)
	}

	// Remote access needs enough to address a bucket
	if cfg.Remote.Enabled {
		if cfg.Remote.Region == "" {
			return fmt.Errorf("remote: region is required when remote access is enabled")
		}
		if cfg.Remote.Bucket == "" {
			return fmt.Errorf("remote: bucket is required when remote access is enabled")
		}
	}

	// Static credentials come as a pair or not at all
	if (cfg.Remote.AccessKeyID == "") != (cfg.Remote.SecretAccessKey == "") {
		return fmt.Errorf("remote: access_key_id and secret_access_key must both be set or both be empty")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
