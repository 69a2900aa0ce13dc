// Package config defines the backup job configuration structure.
//
// A job file describes one source-to-destination backup pairing: where to
// read, where to write, what to exclude, how to compress and how long to
// keep old snapshots. Jobs load through confloader, so environment
// variables with the SNAPBACK_ prefix override file values.
package config
