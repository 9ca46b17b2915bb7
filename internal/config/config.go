package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const (
	EnvLocal = "local"
	EnvProd  = "prod"
)

// DevHMACSecret is only accepted in offline mode.
const DevHMACSecret = "dev-secret-change-me"

type Config struct {
	Mode      Mode   `env:"MODE" envDefault:"offline"`
	Env       string `env:"ENV" envDefault:"local"`
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	PublicURL string `env:"PUBLIC_URL"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN"`
	SiteID   string `env:"SITE_ID" envDefault:"local"`
	// QuizDir holds quiz JSON files loaded into the store at startup.
	QuizDir string `env:"QUIZ_DIR"`

	EnableLocalAuth bool          `env:"ENABLE_LOCAL_AUTH" envDefault:"true"`
	EnableGuestAuth bool          `env:"ENABLE_GUEST_AUTH" envDefault:"false"`
	AdminUser       string        `env:"ADMIN_USER" envDefault:"admin"`
	AdminPassHash   string        `env:"ADMIN_PASS_HASH" envDefault:"$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"` // bcrypt
	AuthHMACSecret  string        `env:"AUTH_HMAC_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" envDefault:"12h"`

	CORSOriginsOnline  []string `env:"CORS_ORIGINS_ONLINE" envSeparator:"," envDefault:"https://quiz.mindengage.ai"`
	CORSOriginsOffline []string `env:"CORS_ORIGINS_OFFLINE" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:3010"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
}

// FromEnv loads the configuration from environment variables and checks it.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.CORSOriginsOnline = trimAll(cfg.CORSOriginsOnline)
	cfg.CORSOriginsOffline = trimAll(cfg.CORSOriginsOffline)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("MODE must be offline or online, got %q", c.Mode)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.Mode == ModeOnline && (c.AuthHMACSecret == "" || c.AuthHMACSecret == DevHMACSecret) {
		return errors.New("AUTH_HMAC_SECRET must be set in online mode")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}

// CORSOrigins returns the allowed origins for the active mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
