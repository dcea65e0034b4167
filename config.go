package dmzalloc

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the host configuration. It
// can be populated from YAML or JSON; the zero value is useful, allocators
// without an entry simply keep the hosts they were constructed with.
type Config struct {
	Allocators map[string]HostConfig `json:"allocators" yaml:"allocators"`
}

// HostConfig names the relay and target hosts of one allocator, keyed by
// the allocator's name in Config.Allocators.
type HostConfig struct {
	DMZHost    string `json:"dmz_host" yaml:"dmz_host"`
	ServerHost string `json:"server_host" yaml:"server_host"`
}

// DefaultConfig returns an empty configuration.
func DefaultConfig() *Config {
	return &Config{Allocators: map[string]HostConfig{}}
}

// Validate returns an error describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	for name, hosts := range c.Allocators {
		if hosts.DMZHost == "" && hosts.ServerHost == "" {
			return fmt.Errorf("allocator %q: at least one of dmz_host, server_host must be set", name)
		}
	}
	return nil
}

// LoadConfig reads a YAML configuration from URL through the supplied
// file service.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
