// Package config provides the engine configuration file and its
// environment overrides.
//
// A configuration file is YAML or JSON, picked by extension:
//
//	log:
//	  level: debug
//	  format: json
//	netConnect:
//	  enabled: true
//	  allow: ["localhost", "*.internal.test"]
//	definitions:
//	  - fixtures/**/*.json
//	passthrough:
//	  timeout: 5s
//
// ${VAR} and ${VAR:-default} references are expanded before parsing.
// Environment variables (NETMOCK_OFF, NETMOCK_NET_CONNECT, NETMOCK_ALLOW,
// NETMOCK_LOG_LEVEL, NETMOCK_LOG_FORMAT) override the file; Sources
// records where each overridden value came from.
package config
