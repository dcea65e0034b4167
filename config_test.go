package dmzalloc

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func TestLoadConfig(t *testing.T) {
	fs := afs.New()
	ctx := context.Background()
	URL := "mem://localhost/config/hosts.yaml"
	payload := `
allocators:
  pleiades:
    dmz_host: dmzfs1
    server_host: pfe1
  columbia:
    dmz_host: dmzfs2
    server_host: cfe2
`
	assert.NoError(t, fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader([]byte(payload))))

	config, err := LoadConfig(ctx, fs, URL)
	assert.NoError(t, err)
	assert.Equal(t, "dmzfs1", config.Allocators["pleiades"].DMZHost)
	assert.Equal(t, "cfe2", config.Allocators["columbia"].ServerHost)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(context.Background(), afs.New(), "mem://localhost/config/absent.yaml")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	config := &Config{Allocators: map[string]HostConfig{"pleiades": {}}}
	assert.Error(t, config.Validate())

	config.Allocators["pleiades"] = HostConfig{DMZHost: "dmzfs1"}
	assert.NoError(t, config.Validate())

	assert.NoError(t, (*Config)(nil).Validate())
	assert.NoError(t, DefaultConfig().Validate())
}
