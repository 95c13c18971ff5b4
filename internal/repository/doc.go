// Package repository defines the charger journal.
//
// The journal is an optional event sink. It keeps one row per charger ever
// seen, with its last reported status and whether it is currently present,
// and an append-only log of every emitted event tagged with its cycle.
//
// # SQLite Implementation
//
// The sqlite subpackage implements Journal on modernc.org/sqlite, so the
// binary stays cgo-free. The schema is created on open.
package repository
