// Package render produces the markdown for task notes and board notes.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// TaskFields are the values substituted into a task note.
type TaskFields struct {
	Title string
	Tag   string
	URL   string
}

// Card is one checklist line on the board.
type Card struct {
	// Note is the wiki-link target of the item's task note.
	Note  string
	Title string
}

// ColumnFields is one board section.
type ColumnFields struct {
	Name  string
	Cards []Card
}

// BoardFields are the values substituted into a board note.
type BoardFields struct {
	Columns []ColumnFields
}

const taskSource = `# {{.Title}}
{{.Tag}}

Link: {{.URL}}

#todo:
- [ ] Create todo list
- [ ]
## Notes:
`

const boardSource = `---

{{.Frontmatter}}
---

{{range .Columns}}## {{.Name}}

{{range .Cards}}- [ ] [[{{.Note}}]] {{.Title}}
{{end}}

{{end}}
%% kanban:settings
` + "```" + `
{{.Settings}}
` + "```" + `
%%
`

var (
	taskTmpl  = template.Must(template.New("task").Parse(taskSource))
	boardTmpl = template.Must(template.New("board").Parse(boardSource))
)

// kanbanSettings is read by the Obsidian Kanban plugin.
var kanbanSettings = map[string]string{"kanban-plugin": "basic"}

// TaskNote renders a task note.
func TaskNote(f TaskFields) (string, error) {
	var b strings.Builder
	if err := taskTmpl.Execute(&b, f); err != nil {
		return "", fmt.Errorf("render task note: %w", err)
	}
	return b.String(), nil
}

// Board renders a board note. Sections appear in the order of f.Columns.
func Board(f BoardFields) (string, error) {
	front, err := yaml.Marshal(kanbanSettings)
	if err != nil {
		return "", fmt.Errorf("render board frontmatter: %w", err)
	}
	settings, err := json.Marshal(kanbanSettings)
	if err != nil {
		return "", fmt.Errorf("render board settings: %w", err)
	}

	data := struct {
		Frontmatter string
		Settings    string
		Columns     []ColumnFields
	}{
		Frontmatter: string(front),
		Settings:    string(settings),
		Columns:     f.Columns,
	}

	var b strings.Builder
	if err := boardTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render board: %w", err)
	}
	return b.String(), nil
}

// ParseFrontmatter returns the YAML frontmatter of a note, or nil if it has
// none.
func ParseFrontmatter(content string) (map[string]interface{}, error) {
	if !strings.HasPrefix(content, "---\n") {
		return nil, nil
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return nil, fmt.Errorf("unterminated frontmatter")
	}
	var out map[string]interface{}
	if err := yaml.Unmarshal([]byte(rest[:end]), &out); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	return out, nil
}
