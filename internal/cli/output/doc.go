// Package output provides output formatting for the snapback CLI.
//
// This package handles all CLI output formatting:
//
//   - formatter.go: Formatter interface and factory
//   - table.go: Table rendering
//   - json.go: JSON output formatting
//   - yaml.go: YAML output formatting
//   - views.go: Tabular views of snapshots and reports
//
// Formatters support multiple output formats (table, json, yaml) and
// machine-readable output for scripting.
package output
