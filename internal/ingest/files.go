package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/reqctx"
)

// IngestFile reads the file at path and ingests it in ModeRAG. If allowedExts is
// non-empty, the file's extension must be in it (case-insensitive, dot optional).
func (o *Orchestrator) IngestFile(ctx context.Context, path string, allowedExts []string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, models.Invalid("file", fmt.Sprintf("extension %q not in allowed list", ext))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, models.Invalid("file", err.Error())
	}
	if !info.Mode().IsRegular() {
		return nil, models.Invalid("file", "not a regular file: "+absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return o.Ingest(ctx, extract.File{Name: filepath.Base(absPath), Content: content}, ModeRAG)
}

// DirectoryReport summarizes an IngestDirectory run.
type DirectoryReport struct {
	Ingested []*Result
	// Skipped maps paths to the reason they were not ingested.
	Skipped map[string]error
}

// IngestDirectory walks dir and ingests each regular file whose extension is in
// allowedExts (all files when empty). Files that cannot be read or extracted are
// skipped and reported. Cancellation and embedding or store failures stop the walk and
// return the report built so far. Subdirectories are visited only when recursive.
func (o *Orchestrator) IngestDirectory(ctx context.Context, dir string, allowedExts []string, recursive bool) (*DirectoryReport, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, models.Invalid("directory", "not a directory: "+absDir)
	}

	ctx, _ = reqctx.Ensure(ctx)
	log := reqctx.Logger(ctx, o.logger)
	report := &DirectoryReport{Skipped: make(map[string]error)}
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are ingested.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		res, err := o.IngestFile(ctx, path, allowedExts)
		if err != nil {
			if fatalForWalk(ctx, err) {
				return err
			}
			log.Debug("skipping file", zap.String("path", path), zap.Error(err))
			report.Skipped[path] = err
			return nil
		}
		report.Ingested = append(report.Ingested, res)
		return nil
	})
	return report, err
}

// fatalForWalk reports whether err would fail every remaining file too.
func fatalForWalk(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, models.ErrEmbedding) || errors.Is(err, models.ErrStore)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
