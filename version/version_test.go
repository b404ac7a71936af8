package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatible(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })

	tests := []struct {
		local, daemon string
		want          bool
	}{
		{"dev", "v1.2.0", true},
		{"v1.2.0", "dev", true},
		{"v1.2.0", "", true},
		{"v1.2.0", "v1.2.7", true},
		{"v1.2.0", "1.2.3", true},
		{"v1.2.0", "v1.3.0", false},
		{"v2.0.0", "v1.0.0", false},
	}
	for _, tt := range tests {
		Version = tt.local
		assert.Equal(t, tt.want, Compatible(tt.daemon), "%s vs %s", tt.local, tt.daemon)
	}
}

func TestUserAgent(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })

	Version = "v0.4.1"
	assert.Equal(t, "orion/v0.4.1", UserAgent())
	assert.Contains(t, GetInfo().String(), "Version:\tv0.4.1")
}
