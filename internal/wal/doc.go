// Package wal records every queue mutation as one line of text in an
// append-only file and folds such a file back into the latest state per
// ticket id.
//
// Line shapes:
//
//	2025-04-16T09:00:00,ADD,200,Email outage,bob,2,,BASE
//	2025-04-16T09:05:00,UPDATE,200,Email outage,bob,1,carol,BASE
//	2025-04-16T09:10:00,DELETE,200
//
// Free-text fields are escaped by replacing "," with ";" and collapsing runs
// of CR/LF to a single space. Reading replaces ";" with ",". The escape is
// lossy: a literal ";" typed by a user reads back as ",".
package wal
