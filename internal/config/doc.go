// Package config handles configuration loading for mercado-gateway.
//
// Configuration is loaded from YAML files with environment variable
// expansion and Go duration parsing. Values that tune conversation
// lifecycle (buffer, cooldown, session, and history-marker TTLs; debounce
// quantum and stall limit) live here so deployments can shorten or stretch
// the windows without touching code.
//
// Environment variables are referenced as ${VAR_NAME} and expand before
// YAML parsing:
//
//	redis:
//	  password: "${MERCADO_REDIS_PASSWORD}"
//
// Durations use time.ParseDuration syntax ("300s", "15m", "2h").
package config
