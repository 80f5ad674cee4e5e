// Package repository defines storage for the scan history.
//
// A session row is written once, when the join, scan and disconnect
// sequence for a network ends. Hosts found by the scan are stored beside
// it and loaded back with the session. The sqlite subpackage is the only
// implementation; it opens the database in WAL mode and creates the schema
// on first use.
//
// The history is for operators and the browser UI. The orchestrator never
// reads it back, so a restart starts with an empty scanned set.
package repository
