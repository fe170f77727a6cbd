// Package bufferpool caches disk pages in memory: a fixed array of frames,
// a page_id -> frame index map, a free-frame list, and a clock replacer
// that picks unpinned victims. Reads that miss go to disk; evicting a
// dirty victim writes it back first.
package bufferpool

import (
	"sync"

	"github.com/gorellydb/gorelly/disk"
	"github.com/gorellydb/gorelly/engineerr"
	"github.com/gorellydb/gorelly/enginelog"
)

var log = enginelog.Component("bufferpool")

// Frame is one in-memory cache slot. Its index within the pool never
// changes; the page it holds does. Page, IsDirty and PinCount are
// protected by mu — a caller holding a fetched Frame must not read or
// write Page concurrently with another goroutine doing the same without
// going through the pool (the pool itself touches a pinned frame's Page
// after returning it only in Flush, which writes back every dirty resident
// frame, pinned or not).
type Frame struct {
	mu       sync.Mutex
	PageID   disk.PageID
	Page     []byte // always len(disk.PageSize)
	IsDirty  bool
	PinCount uint
}

func newFrame() *Frame {
	return &Frame{
		PageID: disk.InvalidPageID,
		Page:   make([]byte, disk.PageSize),
	}
}

// Manager coordinates a fixed pool of frames against one disk manager. Its
// own lock protects pageTable, freeList and the replacer; it acquires a
// frame's lock only while already holding its own, never the reverse, and
// calls into disk (which has its own independent lock around the file
// cursor) while holding both: pool lock, then frame lock, then disk lock.
type Manager struct {
	mu        sync.Mutex
	disk      *disk.DiskManager
	frames    []*Frame
	pageTable map[disk.PageID]int
	freeList  []int
	replacer  replacer
}

// NewManager constructs a pool of poolSize frames backed by dm. poolSize
// must be positive.
func NewManager(dm *disk.DiskManager, poolSize int) *Manager {
	if poolSize <= 0 {
		panic("bufferpool: pool size must be positive")
	}
	frames := make([]*Frame, poolSize)
	freeList := make([]int, poolSize)
	for i := range frames {
		frames[i] = newFrame()
		freeList[i] = i
	}
	return &Manager{
		disk:      dm,
		frames:    frames,
		pageTable: make(map[disk.PageID]int),
		freeList:  freeList,
		replacer:  newClockReplacer(poolSize),
	}
}

// Size returns the number of frames in the pool.
func (m *Manager) Size() int { return len(m.frames) }

// pickTarget pops a free frame if one exists, else asks the replacer for a
// victim. Must be called with m.mu held.
func (m *Manager) pickTarget() (int, bool) {
	if n := len(m.freeList); n > 0 {
		idx := m.freeList[0]
		m.freeList = m.freeList[1:]
		return idx, true
	}
	return m.replacer.Victim()
}

// evictIfResident writes back frame's page if dirty and removes its old
// page id from the page table. Must be called with m.mu held and the
// frame's own lock NOT held (evictIfResident acquires it).
func (m *Manager) evictIfResident(frameIdx int) error {
	frame := m.frames[frameIdx]
	frame.mu.Lock()
	defer frame.mu.Unlock()

	if !frame.PageID.Valid() {
		return nil
	}
	if frame.IsDirty {
		if err := m.disk.WritePageData(frame.PageID, frame.Page); err != nil {
			log.WithField("page_id", frame.PageID).WithError(err).Warn("write-back failed during eviction")
			return err
		}
		log.WithField("page_id", frame.PageID).Debug("flushed dirty victim before reuse")
	}
	delete(m.pageTable, frame.PageID)
	return nil
}

// NewPage allocates a fresh page id, installs it in a frame (evicting and
// writing back a victim if necessary), pins it once, and returns the
// frame. Returns engineerr.ErrNoFreeFrame if every frame is pinned and the
// free list is empty; returns a wrapped I/O error if a write-back or the
// allocation itself fails.
func (m *Manager) NewPage() (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameIdx, ok := m.pickTarget()
	if !ok {
		return nil, engineerr.ErrNoFreeFrame
	}
	if err := m.evictIfResident(frameIdx); err != nil {
		return nil, err
	}

	pageID, err := m.disk.AllocatePage()
	if err != nil {
		return nil, err
	}

	frame := m.frames[frameIdx]
	frame.mu.Lock()
	for i := range frame.Page {
		frame.Page[i] = 0
	}
	frame.PageID = pageID
	frame.IsDirty = false
	frame.PinCount = 1
	frame.mu.Unlock()

	m.pageTable[pageID] = frameIdx
	m.replacer.Pin(frameIdx)

	log.WithField("page_id", pageID).Info("new page")
	return frame, nil
}

// FetchPage returns the frame holding pageID, incrementing its pin count.
// On a cache miss it installs the page (evicting a victim if necessary)
// and reads it from disk. Returns engineerr.ErrNoFreeFrame if no frame is
// available, or a wrapped I/O error if the read or a write-back fails.
func (m *Manager) FetchPage(pageID disk.PageID) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frameIdx, ok := m.pageTable[pageID]; ok {
		frame := m.frames[frameIdx]
		frame.mu.Lock()
		frame.PinCount++
		frame.mu.Unlock()
		m.replacer.Pin(frameIdx)
		return frame, nil
	}

	frameIdx, ok := m.pickTarget()
	if !ok {
		return nil, engineerr.ErrNoFreeFrame
	}
	if err := m.evictIfResident(frameIdx); err != nil {
		return nil, err
	}

	frame := m.frames[frameIdx]
	frame.mu.Lock()
	if err := m.disk.ReadPageData(pageID, frame.Page); err != nil {
		frame.mu.Unlock()
		m.freeList = append(m.freeList, frameIdx)
		return nil, err
	}
	frame.PageID = pageID
	frame.IsDirty = false
	frame.PinCount = 1
	frame.mu.Unlock()

	m.pageTable[pageID] = frameIdx
	m.replacer.Pin(frameIdx)

	log.WithField("page_id", pageID).Debug("fetched page from disk")
	return frame, nil
}

// UnpinPage decrements pageID's pin count. If dirty is true the frame's
// dirty flag is set (OR semantics: a prior true is never cleared by a
// later false). Once the pin count reaches 0 the frame becomes an
// eviction candidate. Returns false if pageID is not resident or its pin
// count is already 0.
func (m *Manager) UnpinPage(pageID disk.PageID, dirty bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameIdx, ok := m.pageTable[pageID]
	if !ok {
		return false
	}
	frame := m.frames[frameIdx]

	frame.mu.Lock()
	defer frame.mu.Unlock()

	if frame.PinCount == 0 {
		return false
	}
	frame.PinCount--
	if dirty {
		frame.IsDirty = true
	}
	if frame.PinCount == 0 {
		m.replacer.Unpin(frameIdx)
	}
	return true
}

// Flush writes back every dirty resident frame and syncs the backing
// file. Not required by the core spec, but provided for shutdown as
// recommended.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pageID, frameIdx := range m.pageTable {
		frame := m.frames[frameIdx]
		frame.mu.Lock()
		if frame.IsDirty {
			if err := m.disk.WritePageData(pageID, frame.Page); err != nil {
				frame.mu.Unlock()
				return err
			}
			frame.IsDirty = false
		}
		frame.mu.Unlock()
	}
	return m.disk.Sync()
}
