package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemVault is an in-memory Vault. Folders are tracked explicitly; creating
// a note does not require its folder to exist.
type MemVault struct {
	mu      sync.Mutex
	notes   map[string]string
	folders map[string]bool
}

// NewMemVault returns an empty in-memory vault.
func NewMemVault() *MemVault {
	return &MemVault{
		notes:   make(map[string]string),
		folders: make(map[string]bool),
	}
}

// Content returns a note's content and whether it exists.
func (v *MemVault) Content(p string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.notes[Clean(p)]
	return c, ok
}

// Put stores a note unconditionally, for seeding tests.
func (v *MemVault) Put(p, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notes[Clean(p)] = content
}

func (v *MemVault) NotePaths(_ context.Context) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	paths := make([]string, 0, len(v.notes))
	for p := range v.notes {
		if isNote(p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (v *MemVault) Exists(_ context.Context, p string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p = Clean(p)
	_, ok := v.notes[p]
	return ok || v.folders[p], nil
}

func (v *MemVault) CreateFolder(_ context.Context, p string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.folders[Clean(p)] = true
	return nil
}

func (v *MemVault) CreateNote(_ context.Context, p, content string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p = Clean(p)
	if _, ok := v.notes[p]; ok {
		return fmt.Errorf("create note %s: %w", p, ErrExists)
	}
	v.notes[p] = content
	return nil
}

func (v *MemVault) DeleteNote(_ context.Context, p string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p = Clean(p)
	if p == "" {
		return fmt.Errorf("delete note: %w", ErrRootDelete)
	}
	prefix := p + "/"
	delete(v.notes, p)
	delete(v.folders, p)
	for k := range v.notes {
		if strings.HasPrefix(k, prefix) {
			delete(v.notes, k)
		}
	}
	for k := range v.folders {
		if strings.HasPrefix(k, prefix) {
			delete(v.folders, k)
		}
	}
	return nil
}
