// Package retain applies retention policy to a backup history.
//
// Policy conditions are a union: exceeding max age or falling beyond the max
// count makes a snapshot a deletion candidate. A candidate referenced as an
// ancestor by any non-deleted snapshot is retained regardless of policy and
// reported to the caller, because deleting a chain ancestor would make its
// dependents unrestorable. Deletions proceed oldest-first so an interrupted
// sweep leaves no mid-chain holes beyond those already present.
package retain
