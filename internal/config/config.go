package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"quotedesk/internal/sheet"
)

const EnvPrefix = "QUOTEDESK"

// Config is loaded by viper from defaults, an optional file, QUOTEDESK_*
// environment variables and command line flags (highest precedence).
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// Root holds one directory per uploaded folder.
	Root string `mapstructure:"root" yaml:"root" validate:"required"`

	// StateDir stores upload staging files and thumbnails.
	// It must live outside Root so it never shows up as a folder.
	StateDir string `mapstructure:"state" yaml:"state" validate:"required"`

	Upload Upload       `mapstructure:"upload" yaml:"upload"`
	Sheet  sheet.Layout `mapstructure:"sheet" yaml:"sheet"`
	Log    Log          `mapstructure:"log" yaml:"log"`

	// WebDAV mounts Root read-only under /dav/.
	WebDAV bool `mapstructure:"webdav" yaml:"webdav"`
}

type Upload struct {
	// MaxBytes caps the size of an uploaded archive. 0 disables the check.
	MaxBytes int64 `mapstructure:"maxBytes" yaml:"maxBytes" validate:"gte=0"`
}

type Log struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json console"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

func SetDefaults(v *viper.Viper) {
	def := sheet.DefaultLayout()
	v.SetDefault("addr", "0.0.0.0:8000")
	v.SetDefault("root", "uploads")
	v.SetDefault("state", ".quotedesk")
	v.SetDefault("upload.maxBytes", int64(512<<20))
	v.SetDefault("sheet.partNumberColumn", def.PartNumberColumn)
	v.SetDefault("sheet.quantityColumn", def.QuantityColumn)
	v.SetDefault("sheet.headerRows", def.HeaderRows)
	v.SetDefault("sheet.extensions", def.Extensions)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.development", false)
	v.SetDefault("webdav", true)
}

// New returns a viper instance with defaults and environment lookup wired.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes the result.
// Relative Root and StateDir are made absolute.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	var err error
	if cfg.Root, err = filepath.Abs(cfg.Root); err != nil {
		return Config{}, fmt.Errorf("abs root: %w", err)
	}
	if cfg.StateDir, err = filepath.Abs(cfg.StateDir); err != nil {
		return Config{}, fmt.Errorf("abs state: %w", err)
	}
	if rel, err := filepath.Rel(cfg.Root, cfg.StateDir); err == nil && !strings.HasPrefix(rel, "..") {
		return Config{}, errors.New("config: state must not be inside root")
	}
	return cfg, nil
}

var ErrInvalidConfig = errors.New("invalid config")

// Validate checks struct tags first, then the rules tags cannot express.
// All problems are reported together.
func (c Config) Validate() error {
	var err error
	if verr := validator.New(validator.WithRequiredStructEnabled()).Struct(c); verr != nil {
		err = multierr.Append(err, verr)
	}
	if strings.TrimSpace(c.Root) == "" {
		err = multierr.Append(err, errors.New("root is required"))
	}
	if strings.TrimSpace(c.StateDir) == "" {
		err = multierr.Append(err, errors.New("state is required"))
	}
	if serr := c.Sheet.Validate(); serr != nil {
		err = multierr.Append(err, serr)
	}
	if err != nil {
		return multierr.Append(ErrInvalidConfig, err)
	}
	return nil
}
