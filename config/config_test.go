package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Run("admin", func(t *testing.T) {
		r, err := ParseRole("admin")
		require.NoError(t, err)
		assert.Equal(t, RoleAdmin, r)
	})

	t.Run("worker", func(t *testing.T) {
		r, err := ParseRole("worker")
		require.NoError(t, err)
		assert.Equal(t, RoleWorker, r)
	})

	t.Run("missing is fatal", func(t *testing.T) {
		_, err := ParseRole("")
		assert.Error(t, err)
	})

	t.Run("unknown is fatal", func(t *testing.T) {
		_, err := ParseRole("observer")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Cluster: ClusterConfig{
				Role:       "worker",
				KeyPrefix:  "nodered:",
				SessionTTL: 86400,
				DebounceMs: 500,
			},
			Shared:  SharedConfig{Backend: "memory"},
			Storage: StorageConfig{Backend: "memory", DataDir: "./data"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		require.NoError(t, validate(cfg))
		assert.Equal(t, "data/package.json", cfg.Packages.ManifestPath)
		assert.Equal(t, "data", cfg.Packages.InstallDir)
	})

	t.Run("missing role rejected", func(t *testing.T) {
		cfg := base()
		cfg.Cluster.Role = ""
		assert.Error(t, validate(cfg))
	})

	t.Run("bad shared backend rejected", func(t *testing.T) {
		cfg := base()
		cfg.Shared.Backend = "etcd"
		assert.Error(t, validate(cfg))
	})

	t.Run("zero debounce rejected", func(t *testing.T) {
		cfg := base()
		cfg.Cluster.DebounceMs = 0
		assert.Error(t, validate(cfg))
	})
}
