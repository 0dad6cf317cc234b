package engine

import "github.com/jmaddaus/sprintboard/internal/model"

// Board holds the work items of each column, in input order.
type Board map[Column][]*model.WorkItem

// Partition buckets items into the fixed columns. Items whose state matches
// no column are returned separately and never appear on the board.
func Partition(items []*model.WorkItem) (Board, []*model.WorkItem) {
	board := make(Board, len(Columns))
	for _, c := range Columns {
		board[c] = nil
	}
	var dropped []*model.WorkItem
	for _, item := range items {
		c, ok := ColumnFor(item.State)
		if !ok {
			dropped = append(dropped, item)
			continue
		}
		board[c] = append(board[c], item)
	}
	return board, dropped
}

// InIteration returns the items whose iteration path equals path exactly.
func InIteration(items []*model.WorkItem, path string) []*model.WorkItem {
	var out []*model.WorkItem
	for _, item := range items {
		if item.IterationPath == path {
			out = append(out, item)
		}
	}
	return out
}
