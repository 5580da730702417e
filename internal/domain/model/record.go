// Package model holds the persistent records that control cookie
// synchronization and the patch types used to update them.
package model

// Record is a value held by a record store. Clone must return a copy that
// shares no mutable state with the receiver.
type Record[T any] interface {
	Clone() T
}

// Patch is a partial update for a record of type T. Apply returns base with
// every field present in the patch overwritten; absent fields are kept.
type Patch[T any] interface {
	Apply(base T) T
}
