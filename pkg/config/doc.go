// Package config loads typed configuration structs from environment
// variables.
//
// Configuration structs declare their variables with `env` field tags and
// are parsed with caarlos0/env. A .env file in the working directory is
// loaded once, if present, before the first parse.
//
// Example:
//
//	type HTTPConfig struct {
//		Addr          string        `env:"HTTP_ADDR" envDefault:":8080"`
//		ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"30s"`
//	}
//
//	var cfg HTTPConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
package config
