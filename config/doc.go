// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment.
//
// Viper does the merging; godotenv loads .env files. Configuration structs
// follow the ApplyDefaults / Validate convention:
//
//	var cfg executor.Config
//	if err := config.LoadConfig("actionexec", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
package config
