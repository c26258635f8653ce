// Package config loads the mapper's configuration.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML file (csvmap.yaml, configs/csvmap.yaml, or CSVMAP_CONFIG_FILE)
//	3. Default values from struct tags (lowest priority)
//
// # Environment Variables
//
// Variables are namespaced with CSVMAP and the section name:
//
//	CSVMAP_SERVER_PORT=8080
//	CSVMAP_UPLOAD_MAX_BYTES=33554432
//	CSVMAP_UPLOAD_ENCODINGS=utf-8,windows-1252,iso-8859-1
//	CSVMAP_SESSION_TTL=2h
//	CSVMAP_LOGGING_LEVEL=debug
//	CSVMAP_TELEMETRY_METRIC_EXPORTER=none
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tests use config.Default(), which needs no environment.
package config
