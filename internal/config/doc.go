// Package config provides loading and environment overlay for the ChitLaq
// event engine configuration. It exposes a Default() baseline, Load() for a
// JSON file, and FromEnv() to overlay CHITLAQ_* environment variables.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/chitlaq.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
