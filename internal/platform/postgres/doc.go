// Package postgres provides the PostgreSQL-backed implementations of the
// storage interfaces: the task store used by the runner and the shared
// circuit breaker state store. It owns query execution and the mapping
// between domain values and database rows.
package postgres
