package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `json:"server"`
	Ledger  LedgerConfig  `json:"ledger"`
	Refresh RefreshConfig `json:"refresh"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// LedgerConfig represents the contract connection configuration. The signer
// key is only ever read from the environment in deployed setups; the file
// field exists for local development chains.
type LedgerConfig struct {
	RPCURL          string `json:"rpc_url"`
	ContractAddress string `json:"contract_address"`
	ChainID         int64  `json:"chain_id"`
	SignerKey       string `json:"signer_key"`
}

// RefreshConfig controls the background projection refresh.
type RefreshConfig struct {
	Interval time.Duration `json:"interval"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Ledger: LedgerConfig{
			RPCURL:  "http://localhost:8545",
			ChainID: 11155111,
		},
		Refresh: RefreshConfig{
			Interval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if rpc := os.Getenv("LEDGER_RPC_URL"); rpc != "" {
		config.Ledger.RPCURL = rpc
	}
	if addr := os.Getenv("LEDGER_CONTRACT_ADDRESS"); addr != "" {
		config.Ledger.ContractAddress = addr
	}
	if chain := os.Getenv("LEDGER_CHAIN_ID"); chain != "" {
		if id, err := strconv.ParseInt(chain, 10, 64); err == nil {
			config.Ledger.ChainID = id
		}
	}
	if key := os.Getenv("LEDGER_SIGNER_KEY"); key != "" {
		config.Ledger.SignerKey = key
	}
	if interval := os.Getenv("REFRESH_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Refresh.Interval = d
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
