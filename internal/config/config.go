// Package config содержит логику чтения конфигурации платформы вознаграждений.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации платформы вознаграждений.
type Config struct {
	RunAddress        string `env:"RUN_ADDRESS"`
	DatabaseURI       string `env:"DATABASE_URI"`
	ManagerWebhookURL string `env:"MANAGER_WEBHOOK_URL"`
	AuthSecret        string `env:"AUTH_SECRET"`
	AdminEmail        string `env:"ADMIN_EMAIL" envDefault:"admin@mrp.local"`
	AdminPassword     string `env:"ADMIN_PASSWORD" envDefault:"admin12345"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envWebhookURL := cfg.ManagerWebhookURL
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage when empty")
	flag.StringVar(&cfg.ManagerWebhookURL, "w", "", "manager webhook URL for wallet request notifications")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing auth cookies")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envWebhookURL != "" {
		cfg.ManagerWebhookURL = envWebhookURL
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
