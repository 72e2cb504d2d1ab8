package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"

	"github.com/telecuidar/docsign/internal/config"
)

const configContent = `
environment = "production"

[database]
host = "db.internal"
port = "5433"
username = "docsign"
password = "secret"
name = "docsign"
sslmode = "require"
max_open_conns = 20
conn_max_lifetime_seconds = 300

[vault]
secret = "0123456789abcdef0123456789abcdef"

[signing]
location = "Brasil"
reason = "Assinatura digital de documento medico"
tsa_url = "http://tsa.example.com/tsr"
`

func TestConfig(t *testing.T) {
	var c config.Config
	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}

	// Root
	assert.Equal(t, "production", c.Environment)

	// Database
	assert.Equal(t, "db.internal", c.Database.Host)
	assert.Equal(t, "5433", c.Database.Port)
	assert.Equal(t, 20, c.Database.MaxOpenConns)

	// Vault and signing
	assert.Equal(t, 32, len(c.Vault.Secret))
	assert.Equal(t, "http://tsa.example.com/tsr", c.Signing.TSAURL)

	assert.Nil(t, c.ValidateFields())
}

func TestValidation(t *testing.T) {
	const empty = ``

	var c config.Config
	if _, err := toml.Decode(empty, &c); err != nil {
		t.Error(err)
	}

	err := c.ValidateFields()
	assert.NotNil(t, err)
}

func TestVaultSecretTooShort(t *testing.T) {
	var c config.Config
	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}
	c.Vault.Secret = "short"

	assert.NotNil(t, c.ValidateFields())
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsign.conf")
	if err := os.WriteFile(path, []byte(configContent), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := config.Read(path)
	assert.Nil(t, err)

	opts := c.PostgresOptions()
	assert.Equal(t, "db.internal", opts.Host)
	assert.Equal(t, 5*time.Minute, opts.ConnMaxLifetime)

	tsa := c.TSA()
	assert.Equal(t, "http://tsa.example.com/tsr", tsa.URL)
}

func TestReadMissingFile(t *testing.T) {
	_, err := config.Read(filepath.Join(t.TempDir(), "missing.conf"))
	assert.NotNil(t, err)
}

func TestReadAppliesDefaults(t *testing.T) {
	const minimal = `
[database]
host = "localhost"
username = "docsign"
name = "docsign"

[vault]
secret = "0123456789abcdef0123456789abcdef"
`
	path := filepath.Join(t.TempDir(), "docsign.conf")
	if err := os.WriteFile(path, []byte(minimal), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := config.Read(path)
	assert.Nil(t, err)
	assert.Equal(t, "5432", c.Database.Port)
	assert.Equal(t, "disable", c.Database.SSLMode)
}
