// Package slotted provides a pure in-memory view over a 4096-byte page
// buffer, packing variable-length tuples using a grow-from-both-ends
// scheme: the header and payload region grow up from byte 0, the slot
// directory grows down from byte 4096.
//
// Byte layout (all multi-byte fields are little-endian u16):
//
//	[0:2)    freeStart  — offset where the next tuple's bytes begin
//	[2:4)    freeEnd     — one past the low end of the slot directory
//	[4:6)    numSlots    — count of slot entries ever allocated
//	[6:freeStart)        — tuple payload region, growing upward
//	[freeEnd:4096)       — slot directory, growing downward
//
// Slot i occupies bytes [4096-4*(i+1), 4096-4*i): a u16 offset followed by
// a u16 length. A length of 0xFFFF marks the slot deleted.
package slotted

import (
	"encoding/binary"
	"sort"
)

// PageSize is the fixed size of a slotted page buffer.
const PageSize = 4096

// HeaderSize is the size of the fixed page header (freeStart, freeEnd,
// numSlots).
const HeaderSize = 6

// SlotEntrySize is the size of one slot directory entry (offset, length).
const SlotEntrySize = 4

// deletedLength is the slot-entry length sentinel marking a deleted slot.
const deletedLength = 0xFFFF

// SlotID indexes a slot directory entry within one page. InvalidSlotID
// (0xFFFF) is never returned as a valid id.
type SlotID uint16

// InvalidSlotID is the reserved sentinel slot id.
const InvalidSlotID SlotID = 0xFFFF

// Page is a view over an already-allocated 4096-byte buffer. It holds no
// data of its own; all reads and writes go straight through to buf, so the
// caller's buffer (typically a bufferpool Frame's page) is the only copy.
type Page struct {
	buf []byte
}

// Init treats buf as uninitialized and writes a fresh header (freeStart=6,
// freeEnd=4096, numSlots=0), discarding any previous contents. Panics if
// len(buf) != PageSize.
func Init(buf []byte) *Page {
	p := mustWrap(buf)
	p.setFreeStart(HeaderSize)
	p.setFreeEnd(PageSize)
	p.setNumSlots(0)
	return p
}

// FromBuffer treats buf as an already-valid slotted page and parses the
// header on demand. Behavior is undefined if buf was never Init'd.
func FromBuffer(buf []byte) *Page {
	return mustWrap(buf)
}

func mustWrap(buf []byte) *Page {
	if len(buf) != PageSize {
		panic("slotted: page buffer must be exactly 4096 bytes")
	}
	return &Page{buf: buf}
}

func (p *Page) freeStart() uint16 { return binary.LittleEndian.Uint16(p.buf[0:2]) }
func (p *Page) freeEnd() uint16   { return binary.LittleEndian.Uint16(p.buf[2:4]) }

// NumSlots returns the count of slot directory entries ever allocated,
// including deleted ones.
func (p *Page) NumSlots() uint16 { return binary.LittleEndian.Uint16(p.buf[4:6]) }

func (p *Page) setFreeStart(v uint16) { binary.LittleEndian.PutUint16(p.buf[0:2], v) }
func (p *Page) setFreeEnd(v uint16)   { binary.LittleEndian.PutUint16(p.buf[2:4], v) }
func (p *Page) setNumSlots(v uint16)  { binary.LittleEndian.PutUint16(p.buf[4:6], v) }

func slotRange(i uint16) (start, end int) {
	end = PageSize - 4*int(i)
	start = end - SlotEntrySize
	return
}

func (p *Page) readSlot(i uint16) (offset, length uint16) {
	start, _ := slotRange(i)
	return binary.LittleEndian.Uint16(p.buf[start : start+2]),
		binary.LittleEndian.Uint16(p.buf[start+2 : start+4])
}

func (p *Page) writeSlot(i uint16, offset, length uint16) {
	start, _ := slotRange(i)
	binary.LittleEndian.PutUint16(p.buf[start:start+2], offset)
	binary.LittleEndian.PutUint16(p.buf[start+2:start+4], length)
}

// LargestContiguousFree returns freeEnd-freeStart when freeEnd >= freeStart,
// else 0. Used to decide whether a compaction could help before attempting
// one.
func (p *Page) LargestContiguousFree() int {
	fs, fe := p.freeStart(), p.freeEnd()
	if fe < fs {
		return 0
	}
	return int(fe - fs)
}

// Insert copies payload into the page and returns the new slot id, or false
// if the page lacks (len(payload)+4) contiguous bytes of free space. A
// zero-length payload is permitted.
func (p *Page) Insert(payload []byte) (SlotID, bool) {
	need := len(payload) + SlotEntrySize
	fs, fe := p.freeStart(), p.freeEnd()
	if int(fs)+need > int(fe) {
		return InvalidSlotID, false
	}

	offset := fs
	copy(p.buf[offset:int(offset)+len(payload)], payload)

	numSlots := p.NumSlots()
	p.writeSlot(numSlots, offset, uint16(len(payload)))

	p.setFreeStart(offset + uint16(len(payload)))
	p.setFreeEnd(fe - SlotEntrySize)
	p.setNumSlots(numSlots + 1)

	return SlotID(numSlots), true
}

// Read returns the payload at slot, or false if slot is out of range or
// deleted. The returned slice aliases the underlying page buffer.
func (p *Page) Read(slot SlotID) ([]byte, bool) {
	idx := uint16(slot)
	if idx >= p.NumSlots() {
		return nil, false
	}
	offset, length := p.readSlot(idx)
	if length == deletedLength {
		return nil, false
	}
	return p.buf[offset : int(offset)+int(length)], true
}

// Update overwrites the tuple at slot with newPayload. If newPayload is no
// longer than the current payload the write is in-place and freeStart does
// not move. Otherwise, it compacts (if needed) to find room and appends
// newPayload at the (possibly new) freeStart, leaving the old bytes as an
// unreferenced hole. Returns false if slot is out of range, deleted, or
// there is no room even after compaction.
func (p *Page) Update(slot SlotID, newPayload []byte) bool {
	idx := uint16(slot)
	if idx >= p.NumSlots() {
		return false
	}
	offset, length := p.readSlot(idx)
	if length == deletedLength {
		return false
	}

	newLen := uint16(len(newPayload))
	if newLen <= length {
		copy(p.buf[offset:int(offset)+int(newLen)], newPayload)
		p.writeSlot(idx, offset, newLen)
		return true
	}

	if p.LargestContiguousFree() < len(newPayload) {
		p.Compact()
		if p.LargestContiguousFree() < len(newPayload) {
			return false
		}
	}

	newOffset := p.freeStart()
	copy(p.buf[newOffset:int(newOffset)+len(newPayload)], newPayload)
	p.writeSlot(idx, newOffset, newLen)
	p.setFreeStart(newOffset + newLen)
	return true
}

// Delete marks slot as deleted (length 0xFFFF). Payload bytes and freeStart
// are left untouched; the hole is reclaimed only by a later Compact.
// Returns false if slot is out of range or already deleted.
func (p *Page) Delete(slot SlotID) bool {
	idx := uint16(slot)
	if idx >= p.NumSlots() {
		return false
	}
	offset, length := p.readSlot(idx)
	if length == deletedLength {
		return false
	}
	p.writeSlot(idx, offset, deletedLength)
	return true
}

type liveEntry struct {
	id     uint16
	offset uint16
	length uint16
}

// Compact reclaims space consumed by deleted slots and update-generated
// holes while preserving every live slot's id and data. The slot directory
// itself is never shrunk (deleted entries can sit at any index, including
// interior ones, so only the trailing count could ever be safely dropped,
// and this implementation does not attempt to verify that precondition);
// freeEnd stays at 4096-4*numSlots throughout, which already held before
// compaction and so needs no adjustment here.
func (p *Page) Compact() {
	numSlots := p.NumSlots()
	live := make([]liveEntry, 0, numSlots)
	for i := uint16(0); i < numSlots; i++ {
		offset, length := p.readSlot(i)
		if length != deletedLength {
			live = append(live, liveEntry{id: i, offset: offset, length: length})
		}
	}
	sort.SliceStable(live, func(a, b int) bool {
		return live[a].offset < live[b].offset
	})

	pos := uint16(HeaderSize)
	for _, e := range live {
		if e.offset != pos {
			copy(p.buf[pos:int(pos)+int(e.length)], p.buf[e.offset:int(e.offset)+int(e.length)])
		}
		p.writeSlot(e.id, pos, e.length)
		pos += e.length
	}
	p.setFreeStart(pos)
}

// Iterator yields (SlotID, payload) pairs for every non-deleted slot in
// ascending slot-id order. It is produced fresh by each call to Iterate and
// is not restartable.
type Iterator struct {
	page *Page
	next uint16
}

// Iterate returns a fresh, non-restartable iterator over this page's live
// tuples.
func (p *Page) Iterate() *Iterator {
	return &Iterator{page: p}
}

// Next returns the next live (slot, payload) pair, or ok=false once
// exhausted.
func (it *Iterator) Next() (id SlotID, payload []byte, ok bool) {
	numSlots := it.page.NumSlots()
	for it.next < numSlots {
		cur := it.next
		it.next++
		if b, present := it.page.Read(SlotID(cur)); present {
			return SlotID(cur), b, true
		}
	}
	return InvalidSlotID, nil, false
}
