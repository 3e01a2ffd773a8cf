// Package config loads the EV Market Web configuration.
//
// Load reads the YAML file, then an optional dotenv file, then EVMARKET_*
// environment variables, and validates the result. Fields left unset keep
// their built-in defaults. Keep broker and InfluxDB credentials in the
// environment rather than the file.
//
//	cfg, err := config.Load("configs/config.yaml")
package config
