// Package extension holds the component registry: collectors, processors,
// analyzers and reporters keyed by name, plus the Go types of their
// configurations.
package extension
