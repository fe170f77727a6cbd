// Package disk provides disk I/O management for the database.
// It handles reading and writing fixed-size pages to/from a single backing
// file: offset = page_id * PageSize, with no header page, no magic number,
// and no checksum. The file grows monotonically; it is never truncated.
package disk

import (
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/gorellydb/gorelly/engineerr"
	"github.com/gorellydb/gorelly/enginelog"
)

// PageSize is the size of a page in bytes (4 KiB). The only page size this
// engine supports.
const PageSize = 4096

// PageID identifies a page within the backing file. Allocation is
// monotonic; a page id returned by AllocatePage is stable for the life of
// the file. Page id 0 is writeable by callers directly but is never itself
// returned by AllocatePage.
type PageID uint64

// InvalidPageID is a sentinel for "no page", used before a frame's first
// use.
const InvalidPageID = PageID(^uint64(0))

func (p PageID) Valid() bool {
	return p != InvalidPageID
}

func (p PageID) String() string {
	if !p.Valid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(p), 10)
}

func (p PageID) ToU64() uint64 {
	return uint64(p)
}

func (p PageID) ToBytes() []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, uint64(p))
	return bytes
}

func PageIDFromBytes(bytes []byte) PageID {
	return PageID(binary.LittleEndian.Uint64(bytes))
}

var log = enginelog.Component("disk")

// DiskManager owns a single backing file and allocates fresh page ids. It
// performs no concurrency control of its own beyond protecting its file
// cursor and numPages counter; exclusive access to a given page's contents
// is the buffer pool's responsibility.
type DiskManager struct {
	mu       sync.Mutex
	heapFile *os.File
	numPages uint64 // highest page id ever written, plus one
}

// NewDiskManager wraps an already-opened file. numPages is seeded from the
// file's current length, so reopening an existing database continues page
// numbering correctly; a brand-new (empty) file starts at 0.
func NewDiskManager(heapFile *os.File) (*DiskManager, error) {
	stat, err := heapFile.Stat()
	if err != nil {
		return nil, engineerr.WrapIO(err, "stat", InvalidPageID)
	}
	return &DiskManager{
		heapFile: heapFile,
		numPages: uint64(stat.Size()) / PageSize,
	}, nil
}

// OpenDiskManager opens or creates heapFilePath for read-write access.
func OpenDiskManager(heapFilePath string) (*DiskManager, error) {
	heapFile, err := os.OpenFile(heapFilePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, engineerr.WrapIO(err, "open", InvalidPageID)
	}
	return NewDiskManager(heapFile)
}

// ReadPageData seeks to pageID*PageSize and reads exactly len(data) bytes.
// Fails if fewer bytes are available or the seek/read errors.
func (dm *DiskManager) ReadPageData(pageID PageID, data []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(PageSize) * int64(pageID.ToU64())
	if _, err := dm.heapFile.Seek(offset, io.SeekStart); err != nil {
		return engineerr.WrapIO(err, "seek", pageID)
	}
	if _, err := io.ReadFull(dm.heapFile, data); err != nil {
		return engineerr.WrapIO(err, "read", pageID)
	}
	log.WithField("page_id", pageID.ToU64()).Debug("read page")
	return nil
}

// WritePageData seeks to pageID*PageSize, writes all of data, flushes, and
// advances numPages to max(numPages, pageID+1).
func (dm *DiskManager) WritePageData(pageID PageID, data []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(PageSize) * int64(pageID.ToU64())
	if _, err := dm.heapFile.Seek(offset, io.SeekStart); err != nil {
		return engineerr.WrapIO(err, "seek", pageID)
	}
	if _, err := dm.heapFile.Write(data); err != nil {
		return engineerr.WrapIO(err, "write", pageID)
	}
	if err := dm.heapFile.Sync(); err != nil {
		return engineerr.WrapIO(err, "flush", pageID)
	}
	if next := pageID.ToU64() + 1; next > dm.numPages {
		dm.numPages = next
	}
	log.WithField("page_id", pageID.ToU64()).Debug("wrote page")
	return nil
}

// AllocatePage picks a new page id equal to numPages (or 1 when numPages is
// 0), zero-fills a page buffer, writes it at that id, and returns the id.
// On a fresh file the first call returns 1, not 0: page id 0 is reachable
// only by a caller writing to it directly.
//
// Unlike this engine's original reference (which incremented numPages once
// in AllocatePage and again inside WritePageData's max-update, silently
// skipping every other id), numPages is advanced exactly once, by
// WritePageData, so ids are dense: 1, 2, 3, ...
func (dm *DiskManager) AllocatePage() (PageID, error) {
	dm.mu.Lock()
	next := dm.numPages
	if next == 0 {
		next = 1
	}
	id := PageID(next)
	dm.mu.Unlock()

	zero := make([]byte, PageSize)
	if err := dm.WritePageData(id, zero); err != nil {
		return InvalidPageID, err
	}
	log.WithField("page_id", id.ToU64()).Info("allocated page")
	return id, nil
}

// Sync flushes the backing file to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return engineerr.WrapIO(dm.heapFile.Sync(), "sync", InvalidPageID)
}

// Close closes the backing file.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.heapFile.Close()
}
