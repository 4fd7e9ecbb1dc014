// Package config loads application configuration from environment variables
// via viper so main stays lean.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerAddr  string `mapstructure:"SERVER_ADDR"`
	Development bool   `mapstructure:"DEVELOPMENT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	AuditTopic   string `mapstructure:"AUDIT_TOPIC"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTExpiry time.Duration `mapstructure:"JWT_EXPIRY"`

	RPCURL          string `mapstructure:"RPC_URL"`
	ContractAddress string `mapstructure:"CONTRACT_ADDRESS"`
	ChainPrivateKey string `mapstructure:"CHAIN_PRIVATE_KEY"`

	IPFSAPIURL        string `mapstructure:"IPFS_API_URL"`
	IPFSProjectID     string `mapstructure:"IPFS_PROJECT_ID"`
	IPFSProjectSecret string `mapstructure:"IPFS_PROJECT_SECRET"`
	IPFSGateway       string `mapstructure:"IPFS_GATEWAY"`

	StatusCacheTTL time.Duration `mapstructure:"STATUS_CACHE_TTL"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("DEVELOPMENT", false)
	viper.SetDefault("AUDIT_TOPIC", "verigate.audit")
	viper.SetDefault("JWT_EXPIRY", 7*24*time.Hour)
	viper.SetDefault("IPFS_API_URL", "https://ipfs.infura.io:5001")
	viper.SetDefault("IPFS_GATEWAY", "https://gateway.ipfs.io/ipfs/")
	viper.SetDefault("STATUS_CACHE_TTL", 5*time.Minute)
	viper.AutomaticEnv()

	// Bind environment variables explicitly so they appear in Unmarshal.
	for _, key := range []string{
		"SERVER_ADDR", "DEVELOPMENT",
		"DATABASE_URL", "REDIS_URL",
		"KAFKA_BROKERS", "AUDIT_TOPIC",
		"JWT_SECRET", "JWT_EXPIRY",
		"RPC_URL", "CONTRACT_ADDRESS", "CHAIN_PRIVATE_KEY",
		"IPFS_API_URL", "IPFS_PROJECT_ID", "IPFS_PROJECT_SECRET", "IPFS_GATEWAY",
		"STATUS_CACHE_TTL",
	} {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	err := viper.Unmarshal(&cfg)
	return cfg, err
}

// Brokers splits the comma-separated broker list; empty when Kafka is not
// configured.
func (c Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
