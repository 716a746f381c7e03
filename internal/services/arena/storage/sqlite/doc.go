// Package sqlite persists match journals in a SQLite database.
package sqlite
