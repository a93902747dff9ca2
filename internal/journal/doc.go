// Package journal records change records in an append-only SQLite log.
//
// A Journal hands out observers bound to one instance. Every record they
// receive becomes a row of the changes table, stamped with a seq from a
// logical clock and holding canonical JSON for the old value, the new value
// and, for container mutations, the diff. Rows are read back in seq order,
// so a journal replays in exactly the order observers saw the changes.
//
// The database runs in WAL mode with a single connection. The schema is
// embedded and upgraded through PRAGMA user_version.
package journal
