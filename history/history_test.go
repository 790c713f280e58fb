package history

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := l.Record(Entry{
		Source:            "boards/main.brd",
		Changed:           true,
		LibrariesBefore:   3,
		LibrariesAfter:    2,
		GroupsMerged:      1,
		ReferencesUpdated: 4,
		PackagesRetained:  7,
		Elapsed:           42 * time.Millisecond,
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := l.Record(Entry{Source: "boards/other.brd"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// reopen and verify persistence
	l, err = Open(path)
	if err != nil {
		t.Fatalf("Open() after close error = %v", err)
	}
	defer l.Close()

	entries, err := l.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	e := entries[0]
	if e.Source != "boards/main.brd" || !e.Changed {
		t.Errorf("wrong first entry: %+v", e)
	}
	if e.LibrariesBefore != 3 || e.LibrariesAfter != 2 || e.GroupsMerged != 1 || e.ReferencesUpdated != 4 || e.PackagesRetained != 7 {
		t.Errorf("wrong counters: %+v", e)
	}
	if e.Elapsed != 42*time.Millisecond {
		t.Errorf("wrong elapsed: %v", e.Elapsed)
	}
	if e.Stamp.IsZero() {
		t.Error("stamp was not recorded")
	}

	if entries[1].Changed {
		t.Error("second entry should be unchanged")
	}
}

func TestLedger_NilSafe(t *testing.T) {
	var l *Ledger
	if err := l.Record(Entry{Source: "x"}); err != nil {
		t.Errorf("nil ledger Record() error = %v", err)
	}
	if entries, err := l.Entries(); err != nil || entries != nil {
		t.Errorf("nil ledger Entries() = %v, %v", entries, err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil ledger Close() error = %v", err)
	}
}
