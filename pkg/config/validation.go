package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/yamlauth/pkg/plugin"
)

// newValidator returns a validator that reports fields by their
// configuration key rather than their Go name.
func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return validate
}

// Validate checks struct tags first and then the rules that span several
// fields. Tag failures are reported as "<key path>: failed '<tag>' validation".
func Validate(cfg *Config) error {
	if err := newValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, formatFieldError(fe))
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	return validateCrossField(cfg)
}

func formatFieldError(fe validator.FieldError) string {
	// Namespace is "Config.api.port"; drop the root type name.
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed '%s' validation (%s=%s, got %v)", key, fe.Tag(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s: failed '%s' validation", key, fe.Tag())
}

func validateCrossField(cfg *Config) error {
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint: required when telemetry is enabled")
	}

	if strings.TrimSpace(cfg.UsersFile) == "" {
		return errors.New("users_file: must not be blank")
	}

	for key := range cfg.PluginOptions {
		if key == "" {
			return errors.New("plugin_options: empty option key")
		}
		if key == plugin.OptUsersFile {
			return fmt.Errorf("plugin_options: %s must be set with the top-level users_file key", plugin.OptUsersFile)
		}
	}

	return nil
}
