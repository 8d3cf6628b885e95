// Package store holds the shared persistence plumbing: the DBTX abstraction
// over connections and transactions, the transaction helper, and the common
// error taxonomy used by every store implementation. It keeps the
// orchestration core independent of any specific persistence technology.
package store
