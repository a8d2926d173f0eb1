package mssql

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Schema   string // restricts discovery; empty means every user schema

	// AuthMethod is "sql" or "service_principal".
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int // seconds
	PoolMaxConns           int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic config map. The auth method is
// service_principal when client_id is present and sql otherwise.
// ssl_mode "disable" turns encryption off, matching the postgres option.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              datasource.ConfigInt(config, "port", DefaultPort()),
		Encrypt:           true,
		ConnectionTimeout: datasource.ConfigInt(config, "connection_timeout", DefaultConnectionTimeout()),
		PoolMaxConns:      datasource.ConfigInt(config, "pool_max_conns", 10),
	}

	host, ok := config["host"].(string)
	if !ok || host == "" {
		return nil, fmt.Errorf("host is required")
	}
	cfg.Host = host

	database, ok := config["database"].(string)
	if !ok || database == "" {
		return nil, fmt.Errorf("database is required")
	}
	cfg.Database = database

	if schema, ok := config["schema"].(string); ok {
		cfg.Schema = schema
	}
	if sslMode, ok := config["ssl_mode"].(string); ok && sslMode == "disable" {
		cfg.Encrypt = false
	}
	if encrypt, ok := config["encrypt"].(bool); ok {
		cfg.Encrypt = encrypt
	}
	if trust, ok := config["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}

	if clientID, ok := config["client_id"].(string); ok && clientID != "" {
		cfg.AuthMethod = "service_principal"
		cfg.ClientID = clientID
		cfg.TenantID, _ = config["tenant_id"].(string)
		cfg.ClientSecret, _ = config["client_secret"].(string)
	} else {
		cfg.AuthMethod = "sql"
		cfg.Username, _ = config["user"].(string)
		cfg.Password, _ = config["password"].(string)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields required by the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case "sql":
		if c.Username == "" {
			return fmt.Errorf("user is required for SQL authentication")
		}
	case "service_principal":
		if c.TenantID == "" || c.ClientSecret == "" {
			return fmt.Errorf("tenant_id and client_secret are required for service principal authentication")
		}
	default:
		return fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", c.AuthMethod)
	}
	return nil
}
