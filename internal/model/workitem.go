package model

import "strings"

// Iteration is the team's current sprint as reported by the remote tracker.
type Iteration struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Path is the backslash-separated iteration path, e.g. `Proj\Sprint 5`.
	Path       string              `json:"path"`
	Attributes IterationAttributes `json:"attributes"`
}

// IterationAttributes carries the iteration timeframe.
type IterationAttributes struct {
	StartDate  string `json:"startDate,omitempty"`
	FinishDate string `json:"finishDate,omitempty"`
	TimeFrame  string `json:"timeFrame,omitempty"`
}

// FolderPath returns Path with backslashes turned into slash separators.
func (it *Iteration) FolderPath() string {
	return strings.ReplaceAll(it.Path, `\`, "/")
}

// ItemRef is a work item reference returned by a WIQL query.
type ItemRef struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// WorkItem is the subset of remote work item fields the sync consumes.
type WorkItem struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	State         string `json:"state"`
	IterationPath string `json:"iteration_path"`
	URL           string `json:"url"`
	// EditURL is the browser deep link to the item's edit page.
	EditURL string `json:"edit_url"`
}

// Tag returns the note tag for the item's type, e.g. "#UserStory".
func (w *WorkItem) Tag() string {
	return "#" + strings.ReplaceAll(w.Type, " ", "")
}
