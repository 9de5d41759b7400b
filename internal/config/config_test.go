package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/session"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "possync.db", cfg.Database)
	assert.Equal(t, 10*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval)
	assert.Equal(t, LeaseNone, cfg.Lease.Backend)
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "till.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: /var/lib/possync/till.db
remote_url: http://backoffice.local:8080
probe_interval: 5s
user_id: u-csh
role: cashier
store_id: store-1
lease:
  backend: sqlite
  ttl: 1m
`), 0o644))
	t.Setenv("POSSYNC_STORE_ID", "store-2")
	t.Setenv("POSSYNC_LEASE_KEY", "drain:store-2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/possync/till.db", cfg.Database)
	assert.Equal(t, 5*time.Second, cfg.ProbeInterval)
	assert.Equal(t, "store-2", cfg.StoreID, "environment overrides the file")
	assert.Equal(t, LeaseSQLite, cfg.Lease.Backend)
	assert.Equal(t, time.Minute, cfg.Lease.TTL)
	assert.Equal(t, "drain:store-2", cfg.Lease.Key)

	user, err := cfg.Session()
	require.NoError(t, err)
	assert.Equal(t, session.Context{UserID: "u-csh", Role: session.RoleCashier, StoreID: "store-2"}, user)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown role", map[string]string{"POSSYNC_ROLE": "barista"}},
		{"redis without url", map[string]string{"POSSYNC_LEASE_BACKEND": "redis"}},
		{"unknown lease backend", map[string]string{"POSSYNC_LEASE_BACKEND": "etcd"}},
		{"bad remote url", map[string]string{"POSSYNC_REMOTE_URL": "not a url"}},
		{"unknown timezone", map[string]string{"POSSYNC_TIMEZONE": "Mars/Olympus"}},
		{"zero timeout", map[string]string{"POSSYNC_REMOTE_TIMEOUT": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestSession_RequiresUser(t *testing.T) {
	cfg := &Config{Role: "cashier"}
	_, err := cfg.Session()
	assert.Error(t, err)
}
