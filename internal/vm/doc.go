// Package vm provides the lifecycle controller for a single VM.
//
// A Controller binds one descriptor to one backend adapter and exposes four
// operations: Create, Start, Stop and Delete. Each returns a Result with a
// success flag and a human-readable message; errors never escape these
// methods, so presentation layers only print the result.
//
// Run State:
//
// The controller holds the VM's phase (Stopped or Running) for its
// lifetime. In the query state mode it asks the backend for the power state
// when it is constructed and before Stop and Delete. In the cached mode it
// trusts only what it has observed itself, so a fresh controller considers
// its VM stopped.
//
// Scan and List read the storage root; the filesystem is the only registry.
package vm
