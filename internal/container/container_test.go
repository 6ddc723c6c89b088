package container

import (
	"context"
	"testing"

	"curiesuite/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("CONFIG_FILE", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewWithMemoryStore(t *testing.T) {
	c, err := New(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	assert.Nil(t, c.DB)
	assert.NotNil(t, c.RunRepo)
	assert.Len(t, c.Aligners, 2)
	opts := c.Blast.Aligners()
	require.Len(t, opts, 2)
	assert.Equal(t, "clustalo", opts[0].Name)
	assert.Equal(t, "MUSCLE", opts[1].Label)
	assert.NotNil(t, c.Curve)
	assert.NotNil(t, c.Pixels)
	assert.NotNil(t, c.Stats)
	assert.NotNil(t, c.Runs)
}

func TestNewWithSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{Driver: "sqlite3", URL: "file::memory:?cache=shared"}

	c, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	require.NotNil(t, c.DB)
	runs, err := c.Runs.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(context.Background(), nil, zerolog.Nop())
	assert.Error(t, err)
}
