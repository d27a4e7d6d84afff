// Package store manages inspection persistence backed by SQLite.
//
// It owns the pending task queue, inspection result records, the cart
// status snapshot, and the alert log. Migrations are embedded and applied
// when the database is opened. Lookups that find nothing return nil
// values rather than sentinel errors.
package store
