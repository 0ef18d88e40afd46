package config

import (
	"sort"

	"github.com/marmos91/yamlauth/pkg/plugin"
)

// HostOptions returns the host option list for the plugin: users_file
// first, then the extra options sorted by key. A users_file key among the
// extras is skipped.
func (c *Config) HostOptions() []plugin.Option {
	opts := make([]plugin.Option, 0, len(c.PluginOptions)+1)
	opts = append(opts, plugin.Option{Key: plugin.OptUsersFile, Value: c.UsersFile})

	keys := make([]string, 0, len(c.PluginOptions))
	for k := range c.PluginOptions {
		if k == plugin.OptUsersFile {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		opts = append(opts, plugin.Option{Key: k, Value: c.PluginOptions[k]})
	}
	return opts
}
