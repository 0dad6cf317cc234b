package engine

// Column is one of the fixed board columns. Its value is the work item
// state that lands in it.
type Column string

const (
	ColumnPending        Column = "Pending"
	ColumnInProgress     Column = "In Progress"
	ColumnInMerge        Column = "In Merge"
	ColumnInVerification Column = "In Verification"
	ColumnClosed         Column = "Closed"
)

// Columns lists the board columns in display order.
var Columns = []Column{
	ColumnPending,
	ColumnInProgress,
	ColumnInMerge,
	ColumnInVerification,
	ColumnClosed,
}

// columnByState maps a work item state to its column. Matching is exact:
// "closed" or "Done" do not land anywhere.
var columnByState = map[string]Column{
	string(ColumnPending):        ColumnPending,
	string(ColumnInProgress):     ColumnInProgress,
	string(ColumnInMerge):        ColumnInMerge,
	string(ColumnInVerification): ColumnInVerification,
	string(ColumnClosed):         ColumnClosed,
}

// ColumnFor returns the column for state, or false if the state has none.
func ColumnFor(state string) (Column, bool) {
	c, ok := columnByState[state]
	return c, ok
}
