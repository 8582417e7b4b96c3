// Package cli implements the netmock command line: validating, listing and
// trying definition files without writing a test.
//
//	netmock validate 'mocks/**/*.yaml'
//	netmock list --json mocks/*.json
//	netmock try -d 'mocks/*.yaml' -H 'Accept: application/json' GET https://api.example.com/users/1
//
// Global flags select a configuration file (--config, or NETMOCK_CONFIG),
// JSON output (--json) and the log level (--log-level).
package cli
