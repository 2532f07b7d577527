package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/croquis/collab"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// AuditDB is the SQLite path for the audit event log. Empty disables
	// auditing.
	AuditDB string `yaml:"audit_db"`

	// AuditRetentionDays bounds how long audit events are kept.
	AuditRetentionDays int `yaml:"audit_retention_days"`

	// MCPTransport selects the MCP wiring: "stdio" or "" (disabled).
	MCPTransport string `yaml:"mcp_transport"`

	Collab collab.Config `yaml:"collab"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8787"
	}
	if c.AuditRetentionDays <= 0 {
		c.AuditRetentionDays = 30
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Env wins over the
// file so deployments can override without editing it.
func (c *Config) applyEnv() {
	if v := os.Getenv("ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("AUDIT_DB"); v != "" {
		c.AuditDB = v
	}
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		c.MCPTransport = v
	}
	if v := os.Getenv("EXPORT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Collab.ExportTimeout = d
		}
	}
}
