// Package filetable holds the metadata layer of the file system: the permanent
// table of every file created during a mount session, and the table of live
// handles onto those files.
package filetable

import (
	"fmt"

	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
)

// FileState says whether a file currently has a handle open on it.
type FileState int

const (
	Closed FileState = iota
	Open
)

func (s FileState) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Record is the permanent metadata for one file. Records are created on the
// first open of a path and are never deleted for the rest of the session.
type Record struct {
	Name      string
	Length    int64
	Sectors   int64
	State     FileState
	Addresses common.AddressSet
}

// FileInfo is a read-only snapshot of a [Record].
type FileInfo struct {
	Name    string `csv:"name"`
	Length  int64  `csv:"length"`
	Sectors int64  `csv:"sectors"`
	Open    bool   `csv:"open"`
}

// Info returns a snapshot of the record's metadata.
func (record *Record) Info() FileInfo {
	return FileInfo{
		Name:    record.Name,
		Length:  record.Length,
		Sectors: record.Sectors,
		Open:    record.State == Open,
	}
}

////////////////////////////////////////////////////////////////////////////////

// Table is the permanent file table, keyed by path.
type Table struct {
	records  map[string]*Record
	order    []string
	geometry common.Geometry
	maxFiles int
}

// NewTable creates an empty table that holds at most `maxFiles` records, each
// with an address set shaped for `geometry`.
func NewTable(geometry common.Geometry, maxFiles int) *Table {
	return &Table{
		records:  make(map[string]*Record),
		geometry: geometry,
		maxFiles: maxFiles,
	}
}

// ValidateName checks a path against the naming rules: it must be non-empty and
// no longer than `maxLength` bytes.
func ValidateName(name string, maxLength int) error {
	if name == "" {
		return errors.NewWithMessage(errors.EINVAL, "path can't be empty")
	}
	if len(name) > maxLength {
		return errors.NewWithMessage(
			errors.ENAMETOOLONG,
			fmt.Sprintf("path is %d bytes, limit is %d", len(name), maxLength),
		)
	}
	return nil
}

// Lookup returns the record for `name`, if any.
func (table *Table) Lookup(name string) (*Record, bool) {
	record, ok := table.records[name]
	return record, ok
}

// Create adds a new zero-length, closed record for `name`. It fails with ENFILE
// if the table is full.
func (table *Table) Create(name string) (*Record, error) {
	if _, exists := table.records[name]; exists {
		return nil, errors.NewWithMessage(
			errors.EINVAL, fmt.Sprintf("file %q already exists", name))
	}
	if len(table.records) >= table.maxFiles {
		return nil, errors.NewWithMessage(
			errors.ENFILE,
			fmt.Sprintf("can't create %q: table is full (%d files)", name, table.maxFiles),
		)
	}

	record := &Record{
		Name:      name,
		State:     Closed,
		Addresses: common.NewAddressSet(table.geometry),
	}
	table.records[name] = record
	table.order = append(table.order, name)
	return record, nil
}

// Len gives the number of records in the table.
func (table *Table) Len() int {
	return len(table.records)
}

// Records returns every record in creation order.
func (table *Table) Records() []*Record {
	result := make([]*Record, 0, len(table.order))
	for _, name := range table.order {
		result = append(result, table.records[name])
	}
	return result
}

// Reset drops every record.
func (table *Table) Reset() {
	table.records = make(map[string]*Record)
	table.order = nil
}
