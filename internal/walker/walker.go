package walker

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"coderag/internal/chunker"
)

// FileEntry describes one indexable file found under a project root.
type FileEntry struct {
	Path     string // absolute
	RelPath  string // slash-separated, relative to the root
	Language string
	Size     int64
}

// Scanner enumerates the indexable files of a project tree.
type Scanner struct {
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(s *Scanner) { s.maxFileSize = n }
}

// WithLogger sets the logger used for skipped-entry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{maxFileSize: DefaultMaxFileSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns every indexable file under root, sorted by relative path.
func (s *Scanner) Scan(ctx context.Context, root string) ([]FileEntry, error) {
	files, errs := s.Walk(ctx, root)

	var out []FileEntry
	for f := range files {
		out = append(out, f)
	}
	if err := <-errs; err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	s.logger.Info("scanned project", "root", root, "files", len(out))
	return out, nil
}

// Walk traverses root and streams indexable files on the returned channel.
// Excluded directories and anything matched by the root .gitignore are
// pruned; symlinks, empty files, oversized files, excluded names and files
// of unknown language are skipped. Unreadable entries are skipped rather
// than failing the walk. The error channel carries at most one error and is
// closed after the file channel.
func (s *Scanner) Walk(ctx context.Context, root string) (<-chan FileEntry, <-chan error) {
	files := make(chan FileEntry, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(files)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		ignore, err := LoadIgnore(filepath.Join(absRoot, ".gitignore"))
		if err != nil {
			s.logger.Warn("ignoring unreadable .gitignore", "root", absRoot, "err", err)
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == absRoot {
					return err
				}
				s.logger.Debug("skipping unreadable entry", "path", path, "err", err)
				return nil
			}
			if path == absRoot {
				return nil
			}

			rel, err := filepath.Rel(absRoot, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if ExcludedDir(d.Name()) || ignore.Match(rel, true) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}
			if ExcludedFile(d.Name()) || ignore.Match(rel, false) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() == 0 || info.Size() > s.maxFileSize {
				return nil
			}

			lang := chunker.DetectLanguage(path)
			if lang == chunker.LanguageUnknown {
				return nil
			}

			select {
			case files <- FileEntry{Path: path, RelPath: rel, Language: lang, Size: info.Size()}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}
