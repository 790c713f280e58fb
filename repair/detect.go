package repair

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

const boardExt = ".brd"

// isArchiveFile checks both extension and content - plenty of things are
// called .zip without being one.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

// isBoardFile recognizes board files by extension. Actual content problems
// surface later during parsing where they can be reported properly.
func isBoardFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), boardExt)
}

// isBoardInArchive recognizes board files inside zip archives.
func isBoardInArchive(f *zip.File) bool {
	return isBoardFile(f.FileHeader.Name)
}
