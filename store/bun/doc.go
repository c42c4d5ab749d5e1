// Package bunstore provides a Bun ORM implementation of store.Store
// using the PostgreSQL dialect. It is an alternative to the raw pgx
// backend for projects already standardized on Bun.
//
// Usage:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	st := bunstore.New(db)
//	coord, err := coordinator.New(coordinator.WithStore(st))
package bunstore
