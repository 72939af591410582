package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalize(t *testing.T) {
	var off Config
	assert.False(t, off.Enabled())
	require.NoError(t, off.Normalize())
	assert.Empty(t, off.Port)

	cfg := Config{Host: "db", Name: "mailbot", User: "bot", Password: "p@ss word"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 5, cfg.MaxConnections)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)

	assert.Equal(t, "user=bot password=p@ss word host=db port=5432 dbname=mailbot sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://bot:p%40ss%20word@db:5432/mailbot?sslmode=disable", cfg.URL())

	assert.Error(t, (&Config{Host: "db"}).Normalize())
}

func TestMigrationFileAccounting(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0001_deliveries.up.sql", "0001_deliveries.down.sql", "0002_index.up.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	files := listMigrationFiles(dir)
	assert.Equal(t, []string{"0001_deliveries.up.sql", "0002_index.up.sql"}, files)
	assert.Equal(t, uint64(2), parseVersion("0002_index.up.sql"))
	assert.Len(t, selectApplied(files, 0, 2), 2)
	assert.Empty(t, selectApplied(files, 2, 2))
	assert.Equal(t, []string{"0002_index.up.sql"}, selectApplied(files, 1, 2))
	assert.Nil(t, listMigrationFiles(filepath.Join(dir, "missing")))
}
