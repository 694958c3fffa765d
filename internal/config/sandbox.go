package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Sandbox configures the local API sandbox. It is read only from SANDBOX_*
// environment variables.
type Sandbox struct {
	Addr string `env:"ADDR" envDefault:"localhost:8000"`
	// DatabaseDSN selects Postgres storage. Empty keeps everything in memory.
	DatabaseDSN string        `env:"DATABASE_DSN"`
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"sandbox-secret"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	UploadDir   string        `env:"UPLOAD_DIR" envDefault:"uploads"`

	// TLSCert and TLSKey switch the listener to HTTPS. TLSClientCA
	// additionally verifies client certificates when presented.
	TLSCert     string `env:"TLS_CERT"`
	TLSKey      string `env:"TLS_KEY"`
	TLSClientCA string `env:"TLS_CLIENT_CA"`

	// AdminUsername and AdminPassword seed an administrator account at
	// start-up when both are set.
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// LoadSandbox parses the sandbox configuration from the environment.
func LoadSandbox() (*Sandbox, error) {
	cfg := Sandbox{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SANDBOX_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
