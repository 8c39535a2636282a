package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("COURSETRACK_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("COURSETRACK_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, int64(1<<20), cfg.UploadMaxBytes)
	require.Equal(t, 2*time.Minute, cfg.BatchCacheTTL)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Equal(t, "coursetrack", cfg.EventChannel)
}

func TestLoadRejectsInvalidCacheTTL(t *testing.T) {
	t.Setenv("COURSETRACK_JWT_SECRET", "secret")
	t.Setenv("COURSETRACK_BATCH_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}
