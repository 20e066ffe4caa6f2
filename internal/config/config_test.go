package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "production",
		DBSSLMode:                "require",
		DBDriver:                 "postgres",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		ChatStore:                "sql",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	c := validConfig()
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())

	c = validConfig()
	c.JWTSecret = "short"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.DBPassword = "password"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.DBDriver = "sqlite"
	assert.Error(t, c.Validate())
}

func TestConfig_ValidateStores(t *testing.T) {
	c := validConfig()
	c.Env = "development"

	c.DBDriver = "mysql"
	assert.Error(t, c.Validate())

	c.DBDriver = "sqlite"
	assert.NoError(t, c.Validate())

	c.ChatStore = "mongo"
	c.MongoURI = ""
	assert.Error(t, c.Validate())

	c.MongoURI = "mongodb://127.0.0.1:27017"
	assert.NoError(t, c.Validate())

	c.ChatStore = "cassandra"
	assert.Error(t, c.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "test")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "3001", c.Port)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "sql", c.ChatStore)
	assert.Equal(t, "Freelancing", c.MongoDatabase)
	assert.Equal(t, 30, c.WSTicketTTLSeconds)
	assert.False(t, c.IsProduction())
}

func TestLoadConfig_SSLModeNormalization(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("CHAT_STORE", " Mongo ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "mongo", c.ChatStore)
}
