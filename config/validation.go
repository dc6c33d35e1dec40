package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus the custom rules
// that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.FTP.PasvMaxPort < cfg.FTP.PasvMinPort {
		return fmt.Errorf("ftp: pasv_max_port (%d) must be >= pasv_min_port (%d)",
			cfg.FTP.PasvMaxPort, cfg.FTP.PasvMinPort)
	}

	switch cfg.Storage.Fs {
	case "os", "s3", "dropbox":
	default:
		return fmt.Errorf("storage: unsupported fs %q (want os, s3 or dropbox)", cfg.Storage.Fs)
	}

	return nil
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
