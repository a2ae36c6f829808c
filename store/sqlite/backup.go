package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// backupStamp sorts lexically in time order.
const backupStamp = "20060102_150405.000000000"

// BackupFile describes one snapshot on disk.
type BackupFile struct {
	Path    string
	Size    int64
	TakenAt time.Time
}

// Backup writes a consistent copy of the database into dir and returns its
// path. Writers are not blocked while it runs.
func (s *Store) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	dest := filepath.Join(dir, s.backupPrefix()+time.Now().UTC().Format(backupStamp)+".db")
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("backup %s already exists", dest)
	}

	if _, err := s.reader.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return "", classify("backup", err)
	}
	return dest, nil
}

// ListBackups returns the snapshots of this database found in dir, newest
// first. A missing directory yields an empty list.
func (s *Store) ListBackups(dir string) ([]BackupFile, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []BackupFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	prefix := s.backupPrefix()
	files := make([]BackupFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		taken, err := time.Parse(backupStamp, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".db"))
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat backup %s: %w", name, err)
		}
		files = append(files, BackupFile{
			Path:    filepath.Join(dir, name),
			Size:    info.Size(),
			TakenAt: taken.UTC(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].TakenAt.After(files[j].TakenAt)
	})
	return files, nil
}

// PruneBackups keeps the newest keep snapshots in dir and deletes the rest.
// It returns the removed paths. keep < 1 disables pruning.
func (s *Store) PruneBackups(dir string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, nil
	}
	files, err := s.ListBackups(dir)
	if err != nil {
		return nil, err
	}
	if len(files) <= keep {
		return nil, nil
	}

	var removed []string
	for _, f := range files[keep:] {
		if err := os.Remove(f.Path); err != nil {
			return removed, fmt.Errorf("failed to remove backup %s: %w", f.Path, err)
		}
		removed = append(removed, f.Path)
	}
	return removed, nil
}

func (s *Store) backupPrefix() string {
	base := filepath.Base(s.path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_"
}
