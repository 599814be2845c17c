// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates everything the binary needs.
type Config struct {
	Server ServerConfig
	Model  ModelConfig
	Mindee MindeeConfig
	Flow   FlowConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// ModelConfig describes the OpenAI-compatible chat model behind the
// confirmation interpreter and the message composer.
type ModelConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled reports whether the model credentials are present.
func (c ModelConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// MindeeConfig describes the document extraction service. One model id is
// trained per document class.
type MindeeConfig struct {
	APIKey          string
	BaseURL         string
	IdentityModelID string
	VehicleModelID  string
}

// Enabled reports whether the extractor credentials are present.
func (c MindeeConfig) Enabled() bool {
	return c.APIKey != "" && c.IdentityModelID != "" && c.VehicleModelID != ""
}

// FlowConfig carries the fixed price and the collaborator call timeout.
type FlowConfig struct {
	PriceAmount         int
	PriceCurrency       string
	CollaboratorTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	flowCfg, err := loadFlowConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Model: ModelConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Mindee: MindeeConfig{
			APIKey:          strings.TrimSpace(os.Getenv("MINDEE_API_KEY")),
			BaseURL:         strings.TrimSpace(os.Getenv("MINDEE_BASE_URL")),
			IdentityModelID: strings.TrimSpace(os.Getenv("MINDEE_IDENTITY_MODEL")),
			VehicleModelID:  strings.TrimSpace(os.Getenv("MINDEE_VEHICLE_MODEL")),
		},
		Flow: flowCfg,
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value %q: %w", port, err)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

func loadFlowConfig() (FlowConfig, error) {
	cfg := FlowConfig{
		PriceAmount:         100,
		PriceCurrency:       "USD",
		CollaboratorTimeout: 30 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("POLICY_PRICE_AMOUNT")); v != "" {
		amount, err := strconv.Atoi(v)
		if err != nil || amount <= 0 {
			return FlowConfig{}, fmt.Errorf("invalid POLICY_PRICE_AMOUNT value %q", v)
		}
		cfg.PriceAmount = amount
	}
	cfg.PriceCurrency = getEnvOrDefault("POLICY_PRICE_CURRENCY", cfg.PriceCurrency)

	if v := strings.TrimSpace(os.Getenv("COLLABORATOR_TIMEOUT_MS")); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return FlowConfig{}, fmt.Errorf("invalid COLLABORATOR_TIMEOUT_MS value %q", v)
		}
		cfg.CollaboratorTimeout = time.Duration(ms) * time.Millisecond
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
