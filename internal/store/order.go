package store

// SortOrder selects an ORDER BY clause from a whitelist.
type SortOrder struct {
	Field string // key into the caller's whitelist
	Asc   bool
}

// orderBy renders the clause for o, falling back to fallback when the
// field is not whitelisted. Column names never come from user input.
func orderBy(o SortOrder, columns map[string]string, fallback string) string {
	col, ok := columns[o.Field]
	if !ok {
		col = columns[fallback]
	}
	dir := " DESC"
	if o.Asc {
		dir = " ASC"
	}
	return " ORDER BY " + col + dir
}
