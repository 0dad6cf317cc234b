package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FSVault stores notes as files below a root directory.
type FSVault struct {
	root string
}

// NewFSVault returns a vault rooted at dir. The directory must exist.
func NewFSVault(dir string) (*FSVault, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault: %s is not a directory", dir)
	}
	return &FSVault{root: dir}, nil
}

// Root returns the vault directory.
func (v *FSVault) Root() string {
	return v.root
}

func (v *FSVault) abs(p string) string {
	return filepath.Join(v.root, filepath.FromSlash(Clean(p)))
}

func (v *FSVault) NotePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden folders such as .obsidian and .git.
			if p != v.root && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if !isNote(p) {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (v *FSVault) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(v.abs(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (v *FSVault) CreateFolder(_ context.Context, p string) error {
	if err := os.MkdirAll(v.abs(p), 0755); err != nil {
		return fmt.Errorf("create folder %s: %w", p, err)
	}
	return nil
}

func (v *FSVault) CreateNote(_ context.Context, p, content string) error {
	f, err := os.OpenFile(v.abs(p), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("create note %s: %w", p, ErrExists)
		}
		return fmt.Errorf("create note %s: %w", p, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write note %s: %w", p, err)
	}
	return f.Close()
}

func (v *FSVault) DeleteNote(_ context.Context, p string) error {
	if Clean(p) == "" {
		return fmt.Errorf("delete note: %w", ErrRootDelete)
	}
	if err := os.RemoveAll(v.abs(p)); err != nil {
		return fmt.Errorf("delete note %s: %w", p, err)
	}
	return nil
}
