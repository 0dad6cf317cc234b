// Package vault abstracts the note store the sync writes into. Paths are
// slash-separated and relative to the vault root.
package vault

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
)

// ErrExists is returned by CreateNote when a note is already present.
var ErrExists = errors.New("note already exists")

// ErrRootDelete is returned by DeleteNote for an empty path, which would
// name the whole vault.
var ErrRootDelete = errors.New("refusing to delete vault root")

// Vault is the set of note operations the sync pipeline is allowed to use.
type Vault interface {
	// NotePaths lists every markdown note in the vault.
	NotePaths(ctx context.Context) ([]string, error)
	// Exists reports whether a note or folder is present at p.
	Exists(ctx context.Context, p string) (bool, error)
	CreateFolder(ctx context.Context, p string) error
	// CreateNote writes a new note and fails with ErrExists if one is there.
	CreateNote(ctx context.Context, p, content string) error
	// DeleteNote removes p and anything below it.
	DeleteNote(ctx context.Context, p string) error
}

// Notifier surfaces a message to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(msg string)

func (f NotifyFunc) Notify(msg string) { f(msg) }

// LogNotifier logs notifications at info level.
type LogNotifier struct{}

func (LogNotifier) Notify(msg string) {
	slog.Info("notice", "message", msg)
}

// Clean normalises p to a slash-separated path without leading slash.
func Clean(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Join joins path elements and cleans the result.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

func isNote(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".md")
}
