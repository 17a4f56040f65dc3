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
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Cross-node structural rules (cache indexing, affinity group sizes,
// space budgets) are checked by the file system coordinator at start, not
// here: this layer only verifies the configuration is well-formed and
// internally consistent.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// File system names must be unique; at most one may be unnamed
	names := make(map[string]bool)
	unnamed := false
	for i, fc := range cfg.Filesystems {
		if fc.Name == "" {
			if unnamed {
				return fmt.Errorf("filesystems[%d]: only one unnamed file system is allowed", i)
			}
			unnamed = true
			continue
		}
		if names[fc.Name] {
			return fmt.Errorf("filesystems[%d]: duplicate file system name %q", i, fc.Name)
		}
		names[fc.Name] = true
	}

	// Referenced caches must be defined
	for i, fc := range cfg.Filesystems {
		if _, ok := cfg.Caches[fc.MetaCache]; !ok {
			return fmt.Errorf("filesystems[%d]: meta_cache %q is not defined under caches", i, fc.MetaCache)
		}
		if _, ok := cfg.Caches[fc.DataCache]; !ok {
			return fmt.Errorf("filesystems[%d]: data_cache %q is not defined under caches", i, fc.DataCache)
		}
	}

	// Every mode except PRIMARY delegates to a secondary file system
	for i, fc := range cfg.Filesystems {
		if !usesSecondary(&fc) {
			continue
		}
		if fc.Secondary.Type == "" || fc.Secondary.Type == "none" {
			return fmt.Errorf("filesystems[%d]: a secondary file system is required for any mode other than PRIMARY", i)
		}
	}

	// Daemon nodes host nothing
	if cfg.Node.Daemon && len(cfg.Filesystems) > 0 {
		return fmt.Errorf("node: daemon nodes cannot host file systems")
	}

	// Seeds only make sense with a cluster listener
	if len(cfg.Cluster.Seeds) > 0 && cfg.Cluster.ListenAddr == "" {
		return fmt.Errorf("cluster: seeds are configured but listen_addr is empty")
	}

	return nil
}

func usesSecondary(fc *FilesystemConfig) bool {
	if fc.DefaultMode != "" && fc.DefaultMode != "PRIMARY" {
		return true
	}
	for _, m := range fc.PathModes {
		if m != "PRIMARY" {
			return true
		}
	}
	return false
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
