package plugin

import (
	"errors"
	"fmt"
)

// ErrMissingOption is matched by every ConfigError.
var ErrMissingOption = errors.New("required option not found")

// ConfigError reports that a required host option is absent. The credential
// store is left untouched when it is returned.
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s option not found", e.Key)
}

// Unwrap lets errors.Is match ErrMissingOption.
func (e *ConfigError) Unwrap() error {
	return ErrMissingOption
}
