package repair

import (
	"path/filepath"
	"strings"

	"brdfix/config"
	"brdfix/state"
)

// buildOutputPath constructs output file path for a repaired board. Source
// directory structure (relative path inside a directory or archive) is
// preserved unless nodirs was requested. The output always keeps the board
// extension regardless of how the input file was named.
func buildOutputPath(src, dst string, env *state.LocalEnv) string {
	outDir := dst
	if !env.NoDirs {
		if dir := filepath.Dir(src); dir != "." {
			outDir = filepath.Join(dst, dir)
		}
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(outDir, config.CleanFileName(base)+boardExt)
}
