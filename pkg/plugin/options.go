package plugin

// OptUsersFile is the host option naming the credential file.
const OptUsersFile = "users_file"

// Option is one key/value pair passed by the host, in the order the host
// configuration declares them.
type Option struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// LookupOption returns the value of the first option named key.
func LookupOption(opts []Option, key string) (string, bool) {
	for _, o := range opts {
		if o.Key == key {
			return o.Value, true
		}
	}
	return "", false
}

// usersFile extracts the credential path. A missing or empty value is a
// configuration error.
func usersFile(opts []Option) (string, error) {
	path, ok := LookupOption(opts, OptUsersFile)
	if !ok || path == "" {
		return "", &ConfigError{Key: OptUsersFile}
	}
	return path, nil
}
