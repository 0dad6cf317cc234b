// Package sync runs the refresh pipeline that turns assigned work items into
// task notes and a Kanban board for the current iteration.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmaddaus/sprintboard/internal/azdo"
	"github.com/jmaddaus/sprintboard/internal/engine"
	"github.com/jmaddaus/sprintboard/internal/model"
	"github.com/jmaddaus/sprintboard/internal/notes"
	"github.com/jmaddaus/sprintboard/internal/render"
	"github.com/jmaddaus/sprintboard/internal/vault"
)

// Pipeline performs one refresh against a single project and vault.
type Pipeline struct {
	settings *model.Settings
	client   azdo.Client
	vault    vault.Vault
	folder   string
	notifier vault.Notifier

	now func() time.Time
}

// NewPipeline creates a pipeline. folder is the vault-relative folder under
// which iteration folders are created.
func NewPipeline(settings *model.Settings, client azdo.Client, v vault.Vault, folder string, n vault.Notifier) *Pipeline {
	if n == nil {
		n = vault.LogNotifier{}
	}
	return &Pipeline{
		settings: settings,
		client:   client,
		vault:    v,
		folder:   vault.Clean(folder),
		notifier: n,
		now:      time.Now,
	}
}

// Run executes one refresh. The returned report is never nil. A non-nil
// error means the run could not reach the note stage; per-item failures are
// only reported in the report.
func (p *Pipeline) Run(ctx context.Context) (*model.RunReport, error) {
	report := &model.RunReport{
		ID:        uuid.NewString(),
		StartedAt: p.now(),
		Items:     []*model.ItemReport{},
	}
	log := slog.With("run", report.ID)

	fail := func(msg string, err error) (*model.RunReport, error) {
		err = fmt.Errorf("%s: %w", msg, err)
		log.Error("refresh failed", "error", err)
		p.notifier.Notify("Board update failed: " + err.Error())
		report.Error = err.Error()
		report.FinishedAt = p.now()
		return report, err
	}

	iter, err := p.client.CurrentIteration(ctx, p.settings.Team)
	if err != nil {
		return fail("get current iteration", err)
	}
	report.Iteration = iter.Name
	log = log.With("iteration", iter.Path)

	refs, err := p.client.QueryAssignedItems(ctx, p.settings.Team, p.settings.Username)
	if err != nil {
		return fail("query assigned work items", err)
	}
	refs = uniqueRefs(refs)
	log.Info("work items assigned", "count", len(refs))

	var fetched []*model.WorkItem
	for _, res := range azdo.FetchWorkItems(ctx, p.client, refs) {
		if res.Err != nil {
			log.Warn("fetch work item failed", "id", res.Ref.ID, "error", res.Err)
			report.Items = append(report.Items, &model.ItemReport{
				WorkItemID: res.Ref.ID,
				Outcome:    model.OutcomeFetchFailed,
				Error:      res.Err.Error(),
			})
			continue
		}
		fetched = append(fetched, res.Item)
	}

	inScope := engine.InIteration(fetched, iter.Path)
	for _, item := range fetched {
		if item.IterationPath != iter.Path {
			report.Items = append(report.Items, &model.ItemReport{
				WorkItemID: item.ID,
				Title:      item.Title,
				State:      item.State,
				Outcome:    model.OutcomeOutOfScope,
			})
		}
	}

	folder := vault.Join(p.folder, iter.FolderPath())
	p.ensureFolder(ctx, log, folder)

	paths, err := p.vault.NotePaths(ctx)
	if err != nil {
		// An unreadable vault looks empty; creates of notes that do exist
		// come back as ErrExists and are counted as existing.
		log.Error("list vault notes", "error", err)
	}
	index := notes.BuildIndex(paths)

	itemReports := p.materializeNotes(ctx, log, inScope, index, folder)
	report.Items = append(report.Items, itemReports...)

	var onBoard []*model.WorkItem
	for i, item := range inScope {
		if itemReports[i].Outcome != model.OutcomeFailed {
			onBoard = append(onBoard, item)
		}
	}

	boardPath := vault.Join(folder, iter.Name+"-Board.md")
	if err := p.writeBoard(ctx, onBoard, index, boardPath); err != nil {
		log.Error("write board", "path", boardPath, "error", err)
		report.Error = fmt.Sprintf("write board: %v", err)
	} else {
		report.BoardPath = boardPath
	}

	report.FinishedAt = p.now()
	created, failed := report.Count(model.OutcomeCreated), report.Count(model.OutcomeFailed)
	log.Info("refresh complete",
		"created", created,
		"existing", report.Count(model.OutcomeExisting),
		"failed", failed,
		"fetch_failed", report.Count(model.OutcomeFetchFailed),
		"board", report.BoardPath,
	)
	p.notifier.Notify(fmt.Sprintf("%d notes created, %d failed", created, failed+report.Count(model.OutcomeFetchFailed)))
	return report, nil
}

// uniqueRefs drops repeated IDs, keeping the first ref for each.
func uniqueRefs(refs []model.ItemRef) []model.ItemRef {
	seen := make(map[int]bool, len(refs))
	out := make([]model.ItemRef, 0, len(refs))
	for _, ref := range refs {
		if seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		out = append(out, ref)
	}
	return out
}

func (p *Pipeline) ensureFolder(ctx context.Context, log *slog.Logger, folder string) {
	if folder == "" {
		return
	}
	ok, err := p.vault.Exists(ctx, folder)
	if err != nil {
		log.Error("check iteration folder", "path", folder, "error", err)
		return
	}
	if ok {
		return
	}
	if err := p.vault.CreateFolder(ctx, folder); err != nil {
		log.Error("create iteration folder", "path", folder, "error", err)
	}
}

// materializeNotes creates a task note for every item the index does not
// know yet, concurrently, and returns one report per item in input order.
// Created notes are added to index.
func (p *Pipeline) materializeNotes(ctx context.Context, log *slog.Logger, items []*model.WorkItem, index *notes.Index, folder string) []*model.ItemReport {
	reports := make([]*model.ItemReport, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		r := &model.ItemReport{WorkItemID: item.ID, Title: item.Title, State: item.State}
		reports[i] = r
		if existing, ok := index.Lookup(item); ok {
			r.NotePath = existing
			r.Outcome = model.OutcomeExisting
			continue
		}
		r.NotePath = vault.Join(folder, notes.FileName(item))
		wg.Add(1)
		go func(item *model.WorkItem, r *model.ItemReport) {
			defer wg.Done()
			err := p.createNote(ctx, item, r.NotePath)
			switch {
			case err == nil:
				r.Outcome = model.OutcomeCreated
			case errors.Is(err, vault.ErrExists):
				r.Outcome = model.OutcomeExisting
			default:
				log.Error("create task note", "id", item.ID, "path", r.NotePath, "error", err)
				r.Outcome = model.OutcomeFailed
				r.Error = err.Error()
			}
		}(item, r)
	}
	wg.Wait()

	for i, r := range reports {
		if r.Outcome != model.OutcomeFailed {
			if _, ok := index.Lookup(items[i]); !ok {
				index.Add(items[i], r.NotePath)
			}
		}
	}
	return reports
}

func (p *Pipeline) createNote(ctx context.Context, item *model.WorkItem, notePath string) error {
	link := item.EditURL
	if link == "" {
		link = p.client.EditURL(item.ID)
	}
	content, err := render.TaskNote(render.TaskFields{
		Title: item.Title,
		Tag:   item.Tag(),
		URL:   link,
	})
	if err != nil {
		return err
	}
	return p.vault.CreateNote(ctx, notePath, content)
}

// writeBoard replaces the board at boardPath with one built from items.
func (p *Pipeline) writeBoard(ctx context.Context, items []*model.WorkItem, index *notes.Index, boardPath string) error {
	board, _ := engine.Partition(items)

	fields := render.BoardFields{}
	for _, col := range engine.Columns {
		cf := render.ColumnFields{Name: string(col)}
		for _, item := range board[col] {
			name := notes.Name(item)
			if np, ok := index.Lookup(item); ok {
				name = notes.LinkName(np)
			}
			cf.Cards = append(cf.Cards, render.Card{Note: name, Title: item.Title})
		}
		fields.Columns = append(fields.Columns, cf)
	}
	content, err := render.Board(fields)
	if err != nil {
		return err
	}

	exists, err := p.vault.Exists(ctx, boardPath)
	if err != nil {
		return fmt.Errorf("check board: %w", err)
	}
	if exists {
		if err := p.vault.DeleteNote(ctx, boardPath); err != nil {
			return fmt.Errorf("delete old board: %w", err)
		}
	}
	if err := p.vault.CreateNote(ctx, boardPath, content); err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	return nil
}
