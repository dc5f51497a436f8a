package config

import (
	"os"
	"time"
)

// DBConfig describes the MySQL connection and its pool.
type DBConfig struct {
	User string
	Pass string // may be empty
	Host string
	Port string
	Name string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// LoadDBConfig reads DB_* variables.  DB_USER and DB_NAME are required.
func LoadDBConfig() DBConfig {
	cfg := DBConfig{
		User:            must("DB_USER"),
		Pass:            os.Getenv("DB_PASS"),
		Host:            getenv("DB_HOST", "127.0.0.1"),
		Port:            getenv("DB_PORT", "3306"),
		Name:            must("DB_NAME"),
		MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		PingTimeout:     envDur("DB_PING_TIMEOUT", 5*time.Second),
	}
	if cfg.MaxOpenConns < 1 {
		cfg.MaxOpenConns = 1
	}
	// idle connections beyond the open limit are never used
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	return cfg
}
