// Package service orchestrates backup runs: change detection against the
// latest snapshot, archive building, metadata recording, retention sweeps,
// restore and verification, all over one destination directory.
package service
