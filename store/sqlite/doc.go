// Package sqlite provides a grove ORM implementation of store.Store
// backed by SQLite. It is the default embedded backend for single-node
// deployments and local development.
//
// Usage:
//
//	db, err := grove.Open(sqlitedriver.New("handoff.db"))
//	if err != nil { ... }
//	st := sqlite.New(db)
//	coord, err := coordinator.New(coordinator.WithStore(st))
package sqlite
