package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	envAuthToken  = "SPIKECTL_AUTH_TOKEN"
	envDeployment = "SPIKECTL_DEPLOYMENT"
	envJournal    = "SPIKECTL_JOURNAL"
)

// serviceConfig is the resolved shape of the serve command.
type serviceConfig struct {
	Name        string
	Addr        string
	CorsOrigins []string
	AuthToken   string
	Deployment  string
	Journal     string
}

type fileConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token"`
	Deployment  string   `toml:"deployment"`
	Journal     string   `toml:"journal"`
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Name:        "spikectl",
		Addr:        ":9300",
		CorsOrigins: []string{"http://localhost:3000"},
		Deployment:  "deployment.toml",
		Journal:     "spikectl.db",
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load spikectl config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}

	if meta.IsDefined("deployment") {
		cfg.Deployment = strings.TrimSpace(raw.Deployment)
	}

	if meta.IsDefined("journal") {
		cfg.Journal = strings.TrimSpace(raw.Journal)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return serviceConfig{}, fmt.Errorf("load spikectl config: unknown key %q", undecoded[0].String())
	}
	return cfg, nil
}

// applyEnv lets the environment override secrets and paths.
func applyEnv(cfg *serviceConfig) {
	if v := strings.TrimSpace(os.Getenv(envAuthToken)); v != "" {
		cfg.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv(envDeployment)); v != "" {
		cfg.Deployment = v
	}
	if v := strings.TrimSpace(os.Getenv(envJournal)); v != "" {
		cfg.Journal = v
	}
}

func validateServiceConfig(cfg serviceConfig) error {
	if cfg.Addr == "" {
		return fmt.Errorf("spikectl config missing addr")
	}
	if cfg.AuthToken == "" {
		return fmt.Errorf("spikectl config missing auth_token (or %s)", envAuthToken)
	}
	if cfg.Deployment == "" {
		return fmt.Errorf("spikectl config missing deployment")
	}
	return nil
}

// loadDotEnv loads path when it exists. Variables already set win.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
