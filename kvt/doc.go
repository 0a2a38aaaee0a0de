// Package kvt implements an embedded, in-process transactional
// key-value store with multiple tables and pluggable concurrency
// control.
//
// Callers create tables through the engine handle, optionally begin a
// transaction, then issue data operations identified by transaction
// id, table id and key. A transaction id of 0 means one-shot
// auto-commit mode. The concurrency-control scheme is fixed at
// construction; all four schemes present the same operation contracts
// and differ only in how conflicting access is detected and reported.
package kvt
