// Package heapfile presents an unordered, growable collection of
// variable-length tuples over a sequence of slotted pages, delegating
// page-level layout to slotted and page I/O/caching to bufferpool.
package heapfile

import (
	"sync"

	"github.com/gorellydb/gorelly/bufferpool"
	"github.com/gorellydb/gorelly/disk"
	"github.com/gorellydb/gorelly/enginelog"
	"github.com/gorellydb/gorelly/slotted"
)

var log = enginelog.Component("heapfile")

// TupleID names one tuple within a heap file by the page that holds it and
// its slot within that page.
type TupleID struct {
	PageID disk.PageID
	SlotID slotted.SlotID
}

// PageListPersister lets an embedding catalog persist a heap file's page
// list across process runs. The core engine does not require this: a
// heap file with no persister simply forgets its page list when the
// process exits — an embedding catalog may choose to persist it instead.
type PageListPersister interface {
	Load() ([]disk.PageID, error)
	Save(pages []disk.PageID) error
}

type noopPersister struct{}

func (noopPersister) Load() ([]disk.PageID, error) { return nil, nil }
func (noopPersister) Save(_ []disk.PageID) error   { return nil }

// HeapFile is a handle to the shared buffer pool plus an ordered list of
// the page ids that belong to this collection.
type HeapFile struct {
	mu         sync.Mutex
	bufferPool *bufferpool.Manager
	pages      []disk.PageID
	persist    PageListPersister
}

// New constructs an empty heap file over pool, with no page-list
// persistence.
func New(pool *bufferpool.Manager) *HeapFile {
	hf, _ := NewWithPersister(pool, noopPersister{})
	return hf
}

// NewWithPersister constructs a heap file over pool, loading its page list
// from persister (if it has one) and saving to it after every structural
// change (a new page appended).
func NewWithPersister(pool *bufferpool.Manager, persister PageListPersister) (*HeapFile, error) {
	hf := &HeapFile{bufferPool: pool, persist: persister}
	pages, err := persister.Load()
	if err != nil {
		return nil, err
	}
	hf.pages = pages
	return hf, nil
}

// InsertTuple tries each of the heap file's existing pages in order,
// inserting payload into the first one with room. If none has room, it
// allocates a fresh page, initializes it, and inserts there. Returns the
// resulting TupleID. A buffer pool failure, including
// engineerr.ErrNoFreeFrame when no frame is available, is returned as an
// error with ok=false; ok=false with a nil error means payload does not fit
// even on an empty page.
func (hf *HeapFile) InsertTuple(payload []byte) (TupleID, bool, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	for _, pageID := range hf.pages {
		frame, err := hf.bufferPool.FetchPage(pageID)
		if err != nil {
			return TupleID{}, false, err
		}
		page := slotted.FromBuffer(frame.Page)
		if slotID, ok := page.Insert(payload); ok {
			hf.bufferPool.UnpinPage(pageID, true)
			return TupleID{PageID: pageID, SlotID: slotID}, true, nil
		}
		hf.bufferPool.UnpinPage(pageID, false)
	}

	frame, err := hf.bufferPool.NewPage()
	if err != nil {
		return TupleID{}, false, err
	}
	newPageID := frame.PageID

	page := slotted.Init(frame.Page)
	slotID, ok := page.Insert(payload)
	if !ok {
		hf.bufferPool.UnpinPage(newPageID, true)
		return TupleID{}, false, nil
	}
	hf.bufferPool.UnpinPage(newPageID, true)

	hf.pages = append(hf.pages, newPageID)
	if err := hf.persist.Save(hf.pages); err != nil {
		return TupleID{}, false, err
	}

	log.WithField("page_id", newPageID).Info("heap file grew by one page")
	return TupleID{PageID: newPageID, SlotID: slotID}, true, nil
}

// ReadTuple fetches tid.PageID, reads the slot, copies the payload out,
// and unpins with dirty=false. Returns ok=false if the fetch fails or the
// slot is out of range or deleted.
func (hf *HeapFile) ReadTuple(tid TupleID) ([]byte, bool, error) {
	frame, err := hf.bufferPool.FetchPage(tid.PageID)
	if err != nil {
		return nil, false, err
	}
	defer hf.bufferPool.UnpinPage(tid.PageID, false)

	page := slotted.FromBuffer(frame.Page)
	data, ok := page.Read(tid.SlotID)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// UpdateTuple replaces the payload at tid in place, compacting the page if
// needed to fit a larger payload. DeleteTuple and UpdateTuple extend the
// core insert/read surface.
func (hf *HeapFile) UpdateTuple(tid TupleID, payload []byte) (bool, error) {
	frame, err := hf.bufferPool.FetchPage(tid.PageID)
	if err != nil {
		return false, err
	}

	page := slotted.FromBuffer(frame.Page)
	ok := page.Update(tid.SlotID, payload)
	hf.bufferPool.UnpinPage(tid.PageID, ok)
	return ok, nil
}

// DeleteTuple marks tid's slot deleted.
func (hf *HeapFile) DeleteTuple(tid TupleID) (bool, error) {
	frame, err := hf.bufferPool.FetchPage(tid.PageID)
	if err != nil {
		return false, err
	}

	page := slotted.FromBuffer(frame.Page)
	ok := page.Delete(tid.SlotID)
	hf.bufferPool.UnpinPage(tid.PageID, ok)
	return ok, nil
}

// PageIDs returns a copy of the heap file's current page list.
func (hf *HeapFile) PageIDs() []disk.PageID {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	out := make([]disk.PageID, len(hf.pages))
	copy(out, hf.pages)
	return out
}
