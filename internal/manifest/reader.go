package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Reader discovers manifests under a repositories root.
// Each immediate subdirectory of Root is a repository; its name is the repo id.
type Reader struct {
	Fs       afero.Fs
	Root     string
	FileName string
	Logger   *slog.Logger
}

// NewReader creates a Reader over the OS filesystem.
func NewReader(root string, logger *slog.Logger) *Reader {
	return &Reader{
		Fs:       afero.NewOsFs(),
		Root:     root,
		FileName: DefaultFileName,
		Logger:   logger,
	}
}

// Read returns one record per repository that holds a parseable manifest,
// in repository name order. Unparseable manifests are logged and skipped.
func (r *Reader) Read(ctx context.Context) ([]Record, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsys := r.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	fileName := r.FileName
	if fileName == "" {
		fileName = DefaultFileName
	}

	entries, err := afero.ReadDir(fsys, r.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read repos directory %s: %w", r.Root, err)
	}

	repos := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			repos = append(repos, entry.Name())
		}
	}
	sort.Strings(repos)

	var records []Record
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(r.Root, repo, fileName)
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		m, err := Parse(data)
		if err != nil {
			logger.Warn("YAML parse error", slog.String("repo", repo), slog.String("error", err.Error()))
			continue
		}

		logger.Debug("read manifest", slog.String("repo", repo), slog.String("path", path))
		records = append(records, Record{Repo: repo, Manifest: m})
	}

	return records, nil
}
