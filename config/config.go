package config

import (
	"os"
	"strconv"
)

type Config struct {
	RouterPort   int
	NotifyPort   int
	AuthPort     int
	StoragePort  int
	DBPath       string
	WriteTimeout int // seconds
}

func Load() *Config {
	cfg := &Config{
		RouterPort:   5001,
		AuthPort:     7000,
		StoragePort:  8000,
		DBPath:       "courier.db",
		WriteTimeout: 30,
	}

	if portStr := os.Getenv("COURIER_ROUTER_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.RouterPort = port
		}
	}

	if portStr := os.Getenv("COURIER_NOTIFY_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.NotifyPort = port
		}
	}

	if portStr := os.Getenv("COURIER_AUTH_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.AuthPort = port
		}
	}

	if portStr := os.Getenv("COURIER_STORAGE_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.StoragePort = port
		}
	}

	if dbPath := os.Getenv("COURIER_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if timeoutStr := os.Getenv("COURIER_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	// The notification endpoint historically lives next to the router port.
	if cfg.NotifyPort == 0 {
		cfg.NotifyPort = cfg.RouterPort + 1
	}

	return cfg
}
