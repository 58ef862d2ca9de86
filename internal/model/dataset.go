package model

// Column is one named numeric column extracted from an uploaded file.
type Column struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Dataset is the set of numeric columns owned by a single user, produced
// by that user's most recent successful extraction. Immutable once written.
type Dataset struct {
	OwnerID string   `json:"ownerId"`
	JobID   string   `json:"jobId"`
	Columns []Column `json:"columns"`

	// Version orders concurrent uploads per owner. It is the creation
	// time of the producing job in unix nanoseconds; a writer carrying a
	// smaller version than the stored one lost the race to a newer upload
	// and must not overwrite it.
	Version int64 `json:"version"`
}

// Column returns the named column, or nil if the dataset has no such column.
func (d *Dataset) Column(name string) *Column {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in extraction order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}
