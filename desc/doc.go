// Package desc implements a runtime descriptor pool for protocol buffer
// schemas. A Pool is built from serialized file descriptor metadata (the
// output of a protobuf compiler) and provides read-only descriptor handles
// for every message, field, enum, service, method, and extension declared
// in the pooled files.
//
// A Pool is immutable once built. Handles are cheap value types that pair a
// shared reference to the pool with an integer index into the pool's
// derived metadata; they may be freely copied and used concurrently from
// any number of goroutines. Two handles are equal (==) if and only if they
// address the same entity in the same pool.
//
// All name resolution and metadata derivation happens once, during pool
// construction. Accessor methods on handles are plain lookups and never
// fail; constructing a handle with an out-of-range index is a programming
// error and panics.
package desc
