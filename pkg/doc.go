// Package pkg provides the core functionality of extracting fields from log entries, and of moving entries through a pipeline.
// This package (and subpackages) is a dependency of anything in the plugin package.
//   - The fields package extracts key/value fields from a text field and merges them into an entry.
//   - The tags package rewrites routing tag prefixes.
//   - The iterator package contains functions for creating and altering the behavior of an iterator.Iterator.
//   - The entries package contains functions related to an individual entries.LogEntry.
package pkg
