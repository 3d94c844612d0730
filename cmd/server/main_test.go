package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"posledger/backend/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Env:       "development",
		Port:      "8080",
		LogFormat: "json",
	}
}

func TestValidateConfigAcceptsDevelopmentDefaults(t *testing.T) {
	assert.NoError(t, validateConfig(validConfig()))
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"port":         func(c *config.Config) { c.Port = "http" },
		"port range":   func(c *config.Config) { c.Port = "70000" },
		"log format":   func(c *config.Config) { c.LogFormat = "xml" },
		"short secret": func(c *config.Config) { c.AuthSecret = "short" },
		"prod secret": func(c *config.Config) {
			c.Env = "production"
			c.DatabaseURL = "postgres://localhost/pos"
		},
		"prod database": func(c *config.Config) {
			c.Env = "production"
			c.AuthSecret = "0123456789abcdef0123456789abcdef"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestValidateConfigAcceptsProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	cfg.AuthSecret = "0123456789abcdef0123456789abcdef"
	cfg.DatabaseURL = "postgres://localhost/pos"
	assert.NoError(t, validateConfig(cfg))
}
