// Package restore reconstructs a source tree from a snapshot chain by
// replaying each layer's archive and tombstones into a destination
// directory, root first.
package restore
