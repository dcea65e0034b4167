package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptionClone(t *testing.T) {
	desc := Description{"n_cpus": 4, KeyAllocator: "pleiades"}
	clone := desc.Clone()
	delete(clone, KeyAllocator)

	assert.True(t, desc.Has(KeyAllocator))
	assert.False(t, clone.Has(KeyAllocator))
	assert.Equal(t, 4, clone.Int("n_cpus", 0))
}

func TestDescriptionAccessors(t *testing.T) {
	desc := Description{
		KeyRemoteCommand: "mdao",
		KeyArgs:          []interface{}{"-v", "case1"},
		KeyLocalhost:     true,
		// JSON decoded numbers arrive as float64
		"n_cpus": float64(8),
	}

	assert.Equal(t, "mdao", desc.String(KeyRemoteCommand, ""))
	assert.Equal(t, []string{"-v", "case1"}, desc.Strings(KeyArgs))
	assert.True(t, desc.Bool(KeyLocalhost, false))
	assert.Equal(t, 8, desc.Int("n_cpus", 0))

	assert.Equal(t, "idle", desc.String("queue", "idle"))
	assert.Equal(t, 1, desc.Int("min_cpus", 1))
	assert.False(t, desc.Bool("exclusive", false))
	assert.Nil(t, desc.Strings("missing"))
}
