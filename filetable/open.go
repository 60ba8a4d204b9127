package filetable

import (
	"fmt"
	"sort"

	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
)

// Handle identifies one open file. Handle IDs are never reused by the table
// that issued them, not even after Reset.
type Handle int64

// InvalidHandle is never issued. Closed OpenFiles carry it as their ID.
const InvalidHandle Handle = -1

// OpenFile is the live state of a handle. Length, Sectors, and Addresses are a
// working copy of the record's metadata that is written back on close.
type OpenFile struct {
	Handle    Handle
	Record    *Record
	Position  int64
	Length    int64
	Sectors   int64
	Addresses common.AddressSet
}

// OpenTable maps handles to open files.
type OpenTable struct {
	files      map[Handle]*OpenFile
	nextHandle Handle
}

// NewOpenTable creates an empty table. The first handle it issues is 0.
func NewOpenTable() *OpenTable {
	return &OpenTable{files: make(map[Handle]*OpenFile)}
}

// Open creates a handle onto `record`, copying its metadata into the handle and
// marking it Open. A record that's already open gives EBUSY.
func (table *OpenTable) Open(record *Record) (*OpenFile, error) {
	if record.State == Open {
		return nil, errors.NewWithMessage(
			errors.EBUSY, fmt.Sprintf("file %q is already open", record.Name))
	}

	file := &OpenFile{
		Handle:    table.nextHandle,
		Record:    record,
		Length:    record.Length,
		Sectors:   record.Sectors,
		Addresses: record.Addresses.Clone(),
	}
	table.nextHandle++
	table.files[file.Handle] = file
	record.State = Open
	return file, nil
}

// Get returns the open file for `handle`. Unknown handles give EBADF.
func (table *OpenTable) Get(handle Handle) (*OpenFile, error) {
	file, ok := table.files[handle]
	if !ok {
		return nil, errors.NewWithMessage(
			errors.EBADF, fmt.Sprintf("no open file with handle %d", handle))
	}
	return file, nil
}

// GetOpen is like [OpenTable.Get] but also requires the backing record to be
// Open, failing with EBADFD otherwise.
func (table *OpenTable) GetOpen(handle Handle) (*OpenFile, error) {
	file, err := table.Get(handle)
	if err != nil {
		return nil, err
	}
	if file.Record.State != Open {
		return nil, errors.NewWithMessage(
			errors.EBADFD,
			fmt.Sprintf("handle %d: file %q isn't open", handle, file.Record.Name),
		)
	}
	return file, nil
}

// Close copies the handle's metadata back into its record, marks the record
// Closed, and forgets the handle. The OpenFile itself is reset: zero length
// and position, an empty address set, and [InvalidHandle] as its ID.
//
// Closing a handle whose record is already Closed is a no-op.
func (table *OpenTable) Close(handle Handle) error {
	file, err := table.Get(handle)
	if err != nil {
		return err
	}
	// The driver never leaves a live handle on a Closed record. This only
	// happens when a record's state is changed without going through the table.
	if file.Record.State == Closed {
		delete(table.files, handle)
		return nil
	}

	file.Record.Length = file.Length
	file.Record.Sectors = file.Sectors
	file.Record.Addresses = file.Addresses.Clone()
	file.Record.State = Closed
	delete(table.files, handle)

	file.Handle = InvalidHandle
	file.Position = 0
	file.Length = 0
	file.Sectors = 0
	file.Addresses.Clear()
	return nil
}

// Find returns the handle open on `record`, if there is one.
func (table *OpenTable) Find(record *Record) (*OpenFile, bool) {
	for _, file := range table.files {
		if file.Record == record {
			return file, true
		}
	}
	return nil, false
}

// Handles returns every live handle in increasing order.
func (table *OpenTable) Handles() []Handle {
	handles := make([]Handle, 0, len(table.files))
	for h := range table.files {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// Len gives the number of live handles.
func (table *OpenTable) Len() int {
	return len(table.files)
}

// Reset forgets every handle. The handle counter keeps counting.
func (table *OpenTable) Reset() {
	table.files = make(map[Handle]*OpenFile)
}
