package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("tl-server", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(parse(t, "--jwt-key=k"))
	require.NoError(t, err)
	require.Equal(t, ":8443", c.Addr)
	require.Equal(t, StorePostgres, c.Store)
	require.Equal(t, 15*time.Minute, c.AccessTTL)
	require.Equal(t, 5, c.Limiter.MaxFails)
	require.False(t, c.TLS())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
store: memory
jwt_key: from-file
limiter:
  max_fails: 7
  window: 1m
`), 0o600))

	t.Setenv("TRUSTLEND_JWT_KEY", "from-env")
	t.Setenv("TRUSTLEND_LIMITER_WINDOW", "2m")

	c, err := Load(parse(t, "--config", path, "--addr", ":9100"))
	require.NoError(t, err)
	require.Equal(t, ":9100", c.Addr, "flag beats file")
	require.Equal(t, "from-env", c.JWTKey, "env beats file")
	require.Equal(t, 2*time.Minute, c.Limiter.Window, "nested env key")
	require.Equal(t, 7, c.Limiter.MaxFails, "file beats default")
	require.Equal(t, StoreMemory, c.Store)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing key", nil},
		{"unknown store", []string{"--jwt-key=k", "--store=sqlite"}},
		{"half tls pair", []string{"--jwt-key=k", "--tls-cert=cert.pem"}},
		{"zero ttl", []string{"--jwt-key=k", "--access-ttl=0s"}},
		{"zero fails", []string{"--jwt-key=k", "--limiter-max-fails=0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(parse(t, tc.args...))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(parse(t, "--jwt-key=k", "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
}
