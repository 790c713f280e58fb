// Package history keeps a persistent ledger of repaired documents so that
// batch runs over large board collections can be audited after the fact.
package history

import (
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS repairs (
	id                 INTEGER PRIMARY KEY,
	stamp              TEXT NOT NULL,
	source             TEXT NOT NULL,
	changed            INTEGER NOT NULL,
	libraries_before   INTEGER NOT NULL,
	libraries_after    INTEGER NOT NULL,
	groups_merged      INTEGER NOT NULL,
	references_updated INTEGER NOT NULL,
	packages_retained  INTEGER NOT NULL,
	elapsed_ms         INTEGER NOT NULL
);
`

// Entry is a single ledger record - one processed document.
type Entry struct {
	Stamp             time.Time
	Source            string
	Changed           bool
	LibrariesBefore   int
	LibrariesAfter    int
	GroupsMerged      int
	ReferencesUpdated int
	PackagesRetained  int
	Elapsed           time.Duration
}

// Ledger records repair outcomes in a sqlite database. All methods are nil
// safe - a nil ledger means history was not requested.
// NOTE: presently not to be used concurrently!
type Ledger struct {
	conn *sqlite.Conn
}

// Open creates or opens ledger database at given path.
func Open(path string) (*Ledger, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("unable to open history ledger: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare history ledger: %w", err)
	}
	return &Ledger{conn: conn}, nil
}

// Record appends one entry to the ledger.
func (l *Ledger) Record(e Entry) error {
	if l == nil {
		return nil
	}
	if e.Stamp.IsZero() {
		e.Stamp = time.Now()
	}
	changed := 0
	if e.Changed {
		changed = 1
	}
	return sqlitex.Execute(l.conn,
		`INSERT INTO repairs (stamp, source, changed, libraries_before, libraries_after, groups_merged, references_updated, packages_retained, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		&sqlitex.ExecOptions{
			Args: []any{
				e.Stamp.UTC().Format(time.RFC3339),
				e.Source,
				changed,
				e.LibrariesBefore,
				e.LibrariesAfter,
				e.GroupsMerged,
				e.ReferencesUpdated,
				e.PackagesRetained,
				e.Elapsed.Milliseconds(),
			},
		})
}

// Entries returns all recorded entries, oldest first.
func (l *Ledger) Entries() ([]Entry, error) {
	if l == nil {
		return nil, nil
	}
	var entries []Entry
	err := sqlitex.Execute(l.conn,
		`SELECT stamp, source, changed, libraries_before, libraries_after, groups_merged, references_updated, packages_retained, elapsed_ms FROM repairs ORDER BY id;`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				e := Entry{
					Source:            stmt.ColumnText(1),
					Changed:           stmt.ColumnInt(2) != 0,
					LibrariesBefore:   stmt.ColumnInt(3),
					LibrariesAfter:    stmt.ColumnInt(4),
					GroupsMerged:      stmt.ColumnInt(5),
					ReferencesUpdated: stmt.ColumnInt(6),
					PackagesRetained:  stmt.ColumnInt(7),
					Elapsed:           time.Duration(stmt.ColumnInt64(8)) * time.Millisecond,
				}
				if t, err := time.Parse(time.RFC3339, stmt.ColumnText(0)); err == nil {
					e.Stamp = t
				}
				entries = append(entries, e)
				return nil
			},
		})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
