package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())
	assert.Equal(t, 7, opts.PatientsPageSize)
	assert.Equal(t, 5, opts.TestsPageSize)
	assert.Equal(t, "+86", opts.CountryCode)
	assert.False(t, opts.Archive.Enabled())
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api_url": "https://file.example",
		"patients_page_size": 10,
		"handle_ttl": "5m",
		"archive": {"endpoint": "minio:9000", "bucket": "reports"}
	}`), 0o600))

	t.Setenv(EnvPrefix+"API_URL", "https://env.example")
	t.Setenv(EnvPrefix+"REQUEST_TIMEOUT", "3s")
	t.Setenv(EnvPrefix+"ARCHIVE_PREFIX", "clinic")

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", opts.APIURL)
	assert.Equal(t, 10, opts.PatientsPageSize)
	assert.Equal(t, 5, opts.TestsPageSize)
	assert.Equal(t, 5*time.Minute, opts.HandleTTL.Std())
	assert.Equal(t, 3*time.Second, opts.RequestTimeout.Std())
	assert.Equal(t, "reports", opts.Archive.Bucket)
	assert.Equal(t, "clinic", opts.Archive.Prefix)
	assert.True(t, opts.Archive.Enabled())
	require.NoError(t, opts.Validate())
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"country_code":"+1"}`), 0o600))
	t.Setenv(EnvPrefix+"CONFIG", path)

	opts, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "+1", opts.CountryCode)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().APIURL, opts.APIURL)
}

func TestLoad_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "parsing config file")

	t.Setenv(EnvPrefix+"HANDLE_TTL", "forever")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Options){
		"relative url":     func(o *Options) { o.APIURL = "localhost:8000" },
		"zero page size":   func(o *Options) { o.TestsPageSize = 0 },
		"no token file":    func(o *Options) { o.TokenFile = "" },
		"zero timeout":     func(o *Options) { o.RequestTimeout = 0 },
		"zero ttl":         func(o *Options) { o.HandleTTL = 0 },
		"cert without key": func(o *Options) { o.CertFile = "c.pem" },
		"bad country code": func(o *Options) { o.CountryCode = "+0" },
		"archive bucket":   func(o *Options) { o.Archive.Endpoint = "minio:9000" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := Default()
			mutate(o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestLoadSandbox(t *testing.T) {
	cfg, err := LoadSandbox()
	require.NoError(t, err)
	assert.Equal(t, "localhost:8000", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.DatabaseDSN)

	t.Setenv("SANDBOX_ADDR", ":9000")
	t.Setenv("SANDBOX_TOKEN_TTL", "1h")
	t.Setenv("SANDBOX_DATABASE_DSN", "postgres://x")
	cfg, err = LoadSandbox()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)

	t.Setenv("SANDBOX_TOKEN_TTL", "soon")
	_, err = LoadSandbox()
	assert.Error(t, err)
}
