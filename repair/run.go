// Package repair implements the repair subcommand - it feeds board documents
// found in files, directories and zip archives through the brd merge pass and
// writes results out.
package repair

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"brdfix/archive"
	"brdfix/brd"
	"brdfix/common"
	"brdfix/history"
	"brdfix/state"
)

// Run implements the repair subcommand.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("repair")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite, env.DryRun = cmd.Bool("nodirs"), cmd.Bool("overwrite"), cmd.Bool("dry-run")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	if len(env.Cfg.History.Destination) > 0 {
		if env.Hist, err = history.Open(env.Cfg.History.Destination); err != nil {
			return fmt.Errorf("unable to open history ledger: %w", err)
		}
		defer func() {
			if er := env.Hist.Close(); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to close history ledger: %w", er))
			}
		}()
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Bool("dry-run", env.DryRun))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process handles the core repair logic independently of CLI framework. It
// determines the input type (directory, archive, or single file) and
// processes accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if isBoardFile(head) && len(tail) == 0 {
			file, err := os.Open(head)
			if err != nil {
				return fmt.Errorf("unable to open board file: %w", err)
			}
			defer file.Close()
			if err := processBoard(ctx, file, filepath.Base(head), dst, log); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			}
			break
		}
		return fmt.Errorf("input was not recognized as board file (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding board files and archives and
// processes them. Individual file failures are logged, not fatal - when
// working on a large collection we do not want to stop.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		isArchive, err := isArchiveFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		if !isBoardFile(path) {
			log.Debug("Skipping file, not recognized as board or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processBoard(ctx, file, src, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds board files under
// "pathIn" and processes them.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !isBoardInArchive(f) {
			log.Debug("Skipping file, not recognized as board", zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		cp := state.EnvFromContext(ctx).CodePage

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := processBoard(ctx, r, filepath.Join(pathOut, pathInArchive), dst, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// processBoard repairs a single board document. "src" is part of the source
// path (always including file name) relative to the original path - for a
// directory or archive walk it keeps the inner relative path so that output
// structure can mirror input. "dst" is the destination directory.
func processBoard(ctx context.Context, r io.Reader, src, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName string

	start := time.Now()
	log.Info("Repair starting", zap.String("from", src))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Repair ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("repair panic: %v", r)
		} else {
			log.Info("Repair completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read board source (%s): %w", src, err)
	}

	res, err := brd.Repair(string(data), log)
	if err != nil {
		return fmt.Errorf("unable to repair board source (%s): %w", src, err)
	}

	if res.Changed() {
		log.Info("Merged duplicate libraries",
			zap.Int("groups", res.GroupsMerged),
			zap.Int("librariesBefore", res.LibrariesBefore),
			zap.Int("librariesAfter", res.LibrariesAfter),
			zap.Int("packages", res.PackagesRetained),
			zap.Int("references", res.ReferencesUpdated))
	} else {
		log.Info("No duplicate libraries found")
	}

	// Store before/after and the full trace for debugging
	if env.Rpt != nil && res.Changed() {
		id := uuid.NewString()
		env.Rpt.StoreData(fmt.Sprintf("boards/%s/original.brd", id), data)
		env.Rpt.StoreData(fmt.Sprintf("boards/%s/repaired.brd", id), []byte(res.Output))
		env.Rpt.StoreData(fmt.Sprintf("boards/%s/trace.txt", id), []byte(strings.Join(res.Trace, "\n")+"\n"))
	}

	if err := env.Hist.Record(history.Entry{
		Source:            src,
		Changed:           res.Changed(),
		LibrariesBefore:   res.LibrariesBefore,
		LibrariesAfter:    res.LibrariesAfter,
		GroupsMerged:      res.GroupsMerged,
		ReferencesUpdated: res.ReferencesUpdated,
		PackagesRetained:  res.PackagesRetained,
		Elapsed:           time.Since(start),
	}); err != nil {
		log.Warn("Unable to record repair in history ledger", zap.Error(err))
	}

	if env.DryRun {
		for _, line := range res.Trace {
			log.Info(line)
		}
		return nil
	}

	output := res.Output
	if res.Changed() && env.Cfg.Document.Indent > 0 {
		if output, err = reindent(output, env.Cfg.Document.Indent); err != nil {
			return fmt.Errorf("unable to reindent output: %w", err)
		}
	}

	outputName = buildOutputPath(src, dst, env)

	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		if env.Cfg.Document.Backup == common.BackupModeSidecar {
			if err := os.Rename(outputName, outputName+".orig"); err != nil {
				return fmt.Errorf("unable to create backup: %w", err)
			}
			log.Debug("Kept original as backup", zap.String("file", outputName+".orig"))
		} else {
			log.Warn("Overwriting existing file", zap.String("file", outputName))
			if err = os.Remove(outputName); err != nil {
				return err
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := os.WriteFile(outputName, []byte(output), 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}

// reindent pretty-prints repaired output. Used only when explicitly requested
// since default behavior keeps original formatting to keep diffs reviewable.
func reindent(text string, spaces int) (string, error) {
	doc, err := brd.Parse(strings.NewReader(text))
	if err != nil {
		return "", err
	}
	doc.Indent(spaces)
	out, err := doc.WriteToString()
	if err != nil {
		return "", err
	}
	return brd.EnsureDeclaration(out), nil
}
