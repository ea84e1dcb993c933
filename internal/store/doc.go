// Package store defines the persistence contracts of the reminder pipeline:
// the task store holding reminder state and the append-only reminder log.
// PostgreSQL implementations live in internal/platform/postgres.
package store
