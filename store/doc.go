// Package store holds the client-side caches behind the desk dashboard.
//
// A Session owns one TaskStore and one MemoStore for the lifetime of a
// login. Stores are safe for concurrent use. Readers receive copies; only
// store operations write the caches. Every operation blocks on its HTTP call
// with the caller's context and tracks a loading flag keyed per operation so
// unrelated records stay interactive while one record is in flight.
//
// Task responses are applied only when their generation is still the latest
// issued for that task id, so an older response resolving late never
// overwrites a newer one.
package store
