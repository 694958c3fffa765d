// Package config provides configuration for the MedKeeper client and for
// the local API sandbox.
//
// Client options are layered: built-in defaults, then an optional JSON
// file, then MEDKEEPER_* environment variables, then command-line flags
// applied by the caller.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/atinyakov/MedKeeper/internal/models"
)

// EnvPrefix prefixes every client environment variable.
const EnvPrefix = "MEDKEEPER_"

// Duration is a time.Duration that reads "30s" style strings from JSON and
// from the environment.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Archive locates the optional object storage used to export reports.
type Archive struct {
	Endpoint  string `json:"endpoint" env:"ENDPOINT"`
	AccessKey string `json:"access_key" env:"ACCESS_KEY"`
	SecretKey string `json:"secret_key" env:"SECRET_KEY"`
	Bucket    string `json:"bucket" env:"BUCKET"`
	Prefix    string `json:"prefix" env:"PREFIX"`
	UseSSL    bool   `json:"use_ssl" env:"USE_SSL"`
}

// Enabled reports whether an archive endpoint is configured.
func (a Archive) Enabled() bool { return a.Endpoint != "" }

// Options holds the client configuration.
type Options struct {
	// APIURL is the base location of the REST API.
	APIURL string `json:"api_url" env:"API_URL"`
	// TokenFile is where the bearer token is persisted between runs.
	TokenFile string `json:"token_file" env:"TOKEN_FILE"`
	// SealKeyFile, when set, encrypts the persisted token with a key
	// derived from the file's content.
	SealKeyFile string `json:"seal_key_file" env:"SEAL_KEY_FILE"`
	// BlobDir holds downloaded reports until they are released. Empty
	// means a temporary directory.
	BlobDir   string   `json:"blob_dir" env:"BLOB_DIR"`
	HandleTTL Duration `json:"handle_ttl" env:"HANDLE_TTL"`
	// RequestTimeout bounds every API call.
	RequestTimeout Duration `json:"request_timeout" env:"REQUEST_TIMEOUT"`

	CAFile   string `json:"ca_file" env:"CA_FILE"`
	CertFile string `json:"cert_file" env:"CERT_FILE"`
	KeyFile  string `json:"key_file" env:"KEY_FILE"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	PatientsPageSize int    `json:"patients_page_size" env:"PATIENTS_PAGE_SIZE"`
	TestsPageSize    int    `json:"tests_page_size" env:"TESTS_PAGE_SIZE"`
	CountryCode      string `json:"country_code" env:"COUNTRY_CODE"`

	Archive Archive `json:"archive" envPrefix:"ARCHIVE_"`
}

// Default returns the built-in defaults.
func Default() *Options {
	return &Options{
		APIURL:           "http://localhost:8000",
		TokenFile:        defaultTokenFile(),
		HandleTTL:        Duration(30 * time.Minute),
		RequestTimeout:   Duration(30 * time.Second),
		LogLevel:         "warn",
		PatientsPageSize: 7,
		TestsPageSize:    5,
		CountryCode:      "+86",
	}
}

func defaultTokenFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "medkeeper", "session.json")
	}
	return filepath.Join(".medkeeper", "session.json")
}

// Load builds Options from defaults, the JSON file at path (skipped when
// it does not exist) and the environment. An empty path falls back to
// MEDKEEPER_CONFIG.
func Load(path string) (*Options, error) {
	opts := Default()
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("error while reading config file: %w", err)
		}
	}
	if err := env.ParseWithOptions(opts, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	return opts, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (o *Options) Validate() error {
	var errs []error
	u, err := url.Parse(o.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api url %q must be an absolute http(s) URL", o.APIURL))
	}
	if o.TokenFile == "" {
		errs = append(errs, errors.New("token file must be set"))
	}
	if o.PatientsPageSize <= 0 || o.TestsPageSize <= 0 {
		errs = append(errs, errors.New("page sizes must be positive"))
	}
	if o.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if o.HandleTTL <= 0 {
		errs = append(errs, errors.New("handle ttl must be positive"))
	}
	if (o.CertFile == "") != (o.KeyFile == "") {
		errs = append(errs, errors.New("cert file and key file must be set together"))
	}
	if !models.PhonePattern.MatchString(o.CountryCode + "1") {
		errs = append(errs, fmt.Errorf("country code %q is not a valid phone prefix", o.CountryCode))
	}
	if o.Archive.Enabled() && o.Archive.Bucket == "" {
		errs = append(errs, errors.New("archive bucket must be set"))
	}
	return errors.Join(errs...)
}
