package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Register(fs)
	require.NoError(t, fs.Parse(args))
	v, err := NewViper(fs)
	if err != nil {
		return nil, err
	}
	return Load(v)
}

func TestDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORE", "")
	c, err := load(t, "--jwt_secret=s3cret")
	require.NoError(t, err)
	assert.Equal(t, 4000, c.Port)
	assert.Equal(t, 7*24*time.Hour, c.TokenTTL)
	assert.Equal(t, StoreSQLite, c.Store)
	assert.Equal(t, "./data/blog.db", c.DSN)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, 16, c.SubscriptionBuffer)
}

func TestSecretRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := load(t)
	assert.EqualError(t, err, "jwt_secret is required")
}

func TestEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "8080")

	c, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWTSecret)
	assert.Equal(t, 8080, c.Port)

	// Flags win over the environment.
	c, err = load(t, "--port=9090")
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Port)
}

func TestConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	file := filepath.Join(t.TempDir(), "blog.yaml")
	require.NoError(t, os.WriteFile(file, []byte("jwt_secret: from-file\nstore: memory\ntoken_ttl: 1h\n"), 0o600))

	c, err := load(t, "--config="+file)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.JWTSecret)
	assert.Equal(t, StoreMemory, c.Store)
	assert.Equal(t, time.Hour, c.TokenTTL)

	_, err = load(t, "--config="+filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{Port: 1, JWTSecret: "x", TokenTTL: time.Hour, Store: StoreMemory, BcryptCost: 10, SubscriptionBuffer: 1}
	require.NoError(t, base.Validate())

	for name, mutate := range map[string]func(*Config){
		"port":   func(c *Config) { c.Port = 70000 },
		"ttl":    func(c *Config) { c.TokenTTL = 0 },
		"store":  func(c *Config) { c.Store = "mongo" },
		"dsn":    func(c *Config) { c.Store = StorePostgres; c.DSN = "" },
		"cost":   func(c *Config) { c.BcryptCost = 2 },
		"buffer": func(c *Config) { c.SubscriptionBuffer = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
