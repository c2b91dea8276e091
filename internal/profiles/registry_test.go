package profiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleProfiles = `
routes:
  silk-road:
    description: classic demo route
    stops: [4, -8, 3]
  coastal:
    symbol: ETHUSDT
    stops: [6, -5, -3, -2]
`

func TestRegistryLoads(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, sampleProfiles), false)
	require.NoError(t, err)

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Len(t, snap.Profiles, 2)
	assert.Equal(t, []string{"coastal", "silk-road"}, reg.Names())

	p, ok := reg.Profile("silk-road")
	require.True(t, ok)
	assert.Equal(t, []int64{4, -8, 3}, p.Stops)
	assert.Equal(t, "classic demo route", p.Description)
}

func TestRegistryResolve(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, sampleProfiles), false)
	require.NoError(t, err)

	rt, ok := reg.Resolve("coastal")
	require.True(t, ok)
	assert.Equal(t, "coastal", rt.Name)
	assert.Equal(t, "ETHUSDT", rt.Symbol)
	assert.Equal(t, []int64{6, -5, -3, -2}, rt.Values())

	_, ok = reg.Resolve("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsInvalidProfiles(t *testing.T) {
	cases := map[string]string{
		"missing stops": "routes:\n  broken:\n    description: no stops\n",
		"empty stops":   "routes:\n  broken:\n    stops: []\n",
		"non-integer":   "routes:\n  broken:\n    stops: [1.5]\n",
		"unknown field": "routes:\n  broken:\n    stops: [1]\n    bogus: true\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(writeProfiles(t, content), false)
			assert.Error(t, err)
		})
	}
}

func TestRegistryRequiresPath(t *testing.T) {
	_, err := NewRegistry("  ", false)
	assert.Error(t, err)
}
