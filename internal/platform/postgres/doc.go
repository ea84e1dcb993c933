// Package postgres contains the PostgreSQL implementations of the store
// interfaces, plus the embedded schema migrations. Claiming of due reminders
// relies on FOR UPDATE SKIP LOCKED, so this package requires PostgreSQL.
package postgres
