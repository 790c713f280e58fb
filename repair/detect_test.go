package repair

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func TestIsArchiveFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("wrong_extension", func(t *testing.T) {
		path := filepath.Join(dir, "board.brd")
		if err := os.WriteFile(path, []byte("<eagle/>"), 0644); err != nil {
			t.Fatal(err)
		}
		ok, err := isArchiveFile(path)
		if err != nil {
			t.Fatalf("isArchiveFile() error = %v", err)
		}
		if ok {
			t.Error("board file mistaken for archive")
		}
	})

	t.Run("zip_extension_wrong_content", func(t *testing.T) {
		path := filepath.Join(dir, "fake.zip")
		if err := os.WriteFile(path, []byte("definitely not a zip archive"), 0644); err != nil {
			t.Fatal(err)
		}
		ok, err := isArchiveFile(path)
		if err != nil {
			t.Fatalf("isArchiveFile() error = %v", err)
		}
		if ok {
			t.Error("text file mistaken for archive")
		}
	})

	t.Run("real_zip", func(t *testing.T) {
		path := filepath.Join(dir, "real.zip")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		w := zip.NewWriter(f)
		if _, err := w.Create("main.brd"); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		f.Close()

		ok, err := isArchiveFile(path)
		if err != nil {
			t.Fatalf("isArchiveFile() error = %v", err)
		}
		if !ok {
			t.Error("zip archive was not recognized")
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		if _, err := isArchiveFile(filepath.Join(dir, "none.zip")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestIsBoardFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"main.brd", true},
		{"MAIN.BRD", true},
		{filepath.Join("rev-a", "main.brd"), true},
		{"main.sch", false},
		{"brd", false},
		{"main.brd.bak", false},
	}
	for _, tc := range cases {
		if got := isBoardFile(tc.path); got != tc.want {
			t.Errorf("isBoardFile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
