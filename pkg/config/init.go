package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# yamlauth Configuration File
#
# Every key can be overridden with an environment variable:
#   YAMLAUTH_<SECTION>_<KEY>, e.g. YAMLAUTH_LOGGING_LEVEL=DEBUG

# YAML list of {username, password} records read by the plugin.
users_file: %q

# Extra host options passed to the plugin next to users_file.
plugin_options: {}

logging:
  level: INFO       # DEBUG, INFO, WARN, ERROR
  format: text      # text, json
  output: stdout    # stdout, stderr, or a file path

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0

metrics:
  enabled: false
  port: 9090        # used only when the API server is disabled

api:
  enabled: true
  port: 8085
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s
  # admin_token: change-me   # required as a Bearer token on POST /reload

watch:
  enabled: true
  debounce: 500ms

shutdown_timeout: 10s
`

// InitConfig writes a sample configuration file at the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path. An existing
// file is only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check config file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(configTemplate, DefaultUsersFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
