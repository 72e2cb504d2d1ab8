// Package config reads the service configuration from a TOML file and
// validates it before anything connects or signs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"

	"github.com/telecuidar/docsign/internal/store"
	"github.com/telecuidar/docsign/sign"
)

func init() {
	govalidator.SetFieldsRequiredByDefault(true)
}

// DefaultLocation is where the CLI looks when no -config flag is given.
var DefaultLocation = "./docsign.conf"

// Config is the root of the configuration file.
type Config struct {
	Environment string `toml:"environment" valid:"in(development|production),optional"`

	Database Database `toml:"database"`
	Vault    Vault    `toml:"vault"`
	Signing  Signing  `toml:"signing"`
}

type Database struct {
	Host     string `toml:"host" valid:"required"`
	Port     string `toml:"port" valid:"numeric,optional"`
	Username string `toml:"username" valid:"required"`
	Password string `toml:"password" valid:"-"`
	Name     string `toml:"name" valid:"required"`
	SSLMode  string `toml:"sslmode" valid:"in(disable|require|verify-ca|verify-full),optional"`

	MaxIdleConns           int `toml:"max_idle_conns" valid:"-"`
	MaxOpenConns           int `toml:"max_open_conns" valid:"-"`
	ConnMaxLifetimeSeconds int `toml:"conn_max_lifetime_seconds" valid:"-"`
}

// Vault holds the secret the credential vault derives its AES key from. It
// lives only in the config file, never in the database.
type Vault struct {
	Secret string `toml:"secret" valid:"required,stringlength(16|512)"`
}

// Signing carries the signature dictionary defaults and the optional
// timestamp authority.
type Signing struct {
	Location    string `toml:"location" valid:"-"`
	Reason      string `toml:"reason" valid:"-"`
	TSAURL      string `toml:"tsa_url" valid:"url,optional"`
	TSAUsername string `toml:"tsa_username" valid:"-"`
	TSAPassword string `toml:"tsa_password" valid:"-"`
}

// ValidateFields validates all the fields of the config.
func (c Config) ValidateFields() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return err
	}
	return nil
}

// Read loads and validates the configuration file.
func Read(configfile string) (*Config, error) {
	if _, err := os.Stat(configfile); err != nil {
		return nil, fmt.Errorf("config file is missing: %s", configfile)
	}

	var c Config
	if _, err := toml.DecodeFile(configfile, &c); err != nil {
		return nil, fmt.Errorf("config file is not valid TOML: %w", err)
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if err := c.ValidateFields(); err != nil {
		return nil, fmt.Errorf("config is not valid: %w", err)
	}
	return &c, nil
}

// PostgresOptions maps the database section onto the store layer's options.
func (c *Config) PostgresOptions() store.PostgresOptions {
	return store.PostgresOptions{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		Username:        c.Database.Username,
		Password:        c.Database.Password,
		Name:            c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: time.Duration(c.Database.ConnMaxLifetimeSeconds) * time.Second,
	}
}

// TSA maps the timestamp authority settings onto the signing engine's type.
func (c *Config) TSA() sign.TSA {
	return sign.TSA{
		URL:      c.Signing.TSAURL,
		Username: c.Signing.TSAUsername,
		Password: c.Signing.TSAPassword,
	}
}
