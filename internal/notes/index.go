// Package notes maps work item IDs to the task notes already in a vault.
package notes

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmaddaus/sprintboard/internal/model"
)

// nameRe matches a task note base name, "<Type> - <id>".
var nameRe = regexp.MustCompile(`^(.+) - (\d+)$`)

// Name returns the base name, without extension, of an item's task note.
func Name(item *model.WorkItem) string {
	return item.Type + " - " + strconv.Itoa(item.ID)
}

// FileName returns Name plus the ".md" extension.
func FileName(item *model.WorkItem) string {
	return Name(item) + ".md"
}

// LinkName returns the wiki-link target for the note at p.
func LinkName(p string) string {
	return strings.TrimSuffix(path.Base(p), ".md")
}

// ParseName extracts the work item type and ID from a note path or name.
func ParseName(p string) (typ string, id int, ok bool) {
	m := nameRe.FindStringSubmatch(LinkName(p))
	if m == nil {
		return "", 0, false
	}
	id, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], id, true
}

type key struct {
	typ string
	id  int
}

func keyOf(item *model.WorkItem) key {
	return key{typ: item.Type, id: item.ID}
}

// Index maps work items to task note paths. A note matches an item only
// when both its type and its ID are equal to the item's, so a note for
// item 12 never stands in for item 112 and "Standup - 12" never stands in
// for "Bug - 12".
type Index struct {
	byKey map[key]string
}

// BuildIndex parses every path and keeps those that name a task note.
// When two notes share a name the first one wins.
func BuildIndex(paths []string) *Index {
	ix := &Index{byKey: make(map[key]string)}
	for _, p := range paths {
		typ, id, ok := ParseName(p)
		if !ok {
			continue
		}
		k := key{typ: typ, id: id}
		if _, dup := ix.byKey[k]; !dup {
			ix.byKey[k] = p
		}
	}
	return ix
}

// Lookup returns the note path for item.
func (ix *Index) Lookup(item *model.WorkItem) (string, bool) {
	p, ok := ix.byKey[keyOf(item)]
	return p, ok
}

// Add records a note created during the current run.
func (ix *Index) Add(item *model.WorkItem, p string) {
	ix.byKey[keyOf(item)] = p
}

// Len returns the number of indexed notes.
func (ix *Index) Len() int {
	return len(ix.byKey)
}
