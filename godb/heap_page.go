package godb

import (
	"bytes"
)

// HeapPage is a fixed PageSize-byte page holding a slotted array of
// fixed-width tuples. Layout: a header bitmap of ceil(N/8) bytes,
// big-endian bit order (bit 7 of byte 0 is slot 0), followed by N
// fixed-width tuple bodies; unused trailing bytes are zero.
//
// HeapPage also carries a before-image snapshot, captured at construction
// and re-captured by SetBeforeImage, which the buffer pool writes to the
// WAL next to the page's current image when it flushes the page. Abort
// does not use it: the buffer pool rereads the page from disk instead.
type HeapPage struct {
	id           PageId
	desc         *TupleDesc
	pageSize     int
	numSlots     int
	headerBytes  int
	tuples       []*Tuple // len == numSlots; nil means empty
	dirty        bool
	dirtiedBy    TransactionID
	beforeImage  []byte
}

func headerBytesFor(numSlots int) int {
	return (numSlots + 7) / 8
}

func numSlotsFor(pageSize, tupleSize int) int {
	// pageSize*8 bits total, each slot costs tupleSize*8 body bits + 1
	// header bit; floor division.
	return (pageSize * 8) / (tupleSize*8 + 1)
}

// newEmptyHeapPage constructs a page with no tuples, used when a HeapFile
// extends a file with a fresh page.
func newEmptyHeapPage(id PageId, desc *TupleDesc, pageSize int) *HeapPage {
	numSlots := numSlotsFor(pageSize, desc.TupleSize())
	p := &HeapPage{
		id:          id,
		desc:        desc,
		pageSize:    pageSize,
		numSlots:    numSlots,
		headerBytes: headerBytesFor(numSlots),
		tuples:      make([]*Tuple, numSlots),
	}
	p.beforeImage = p.serializeLocked()
	return p
}

// newHeapPageFromBytes parses raw (exactly pageSize bytes) into a HeapPage.
// All-zero raw bytes parse as an empty page. raw is retained as the
// before-image.
func newHeapPageFromBytes(id PageId, desc *TupleDesc, pageSize int, raw []byte) (*HeapPage, error) {
	if len(raw) != pageSize {
		return nil, newErr(DbErrorKind, "page %v: got %d bytes, want %d", id, len(raw), pageSize)
	}
	numSlots := numSlotsFor(pageSize, desc.TupleSize())
	headerBytes := headerBytesFor(numSlots)
	p := &HeapPage{
		id:          id,
		desc:        desc,
		pageSize:    pageSize,
		numSlots:    numSlots,
		headerBytes: headerBytes,
		tuples:      make([]*Tuple, numSlots),
	}
	tupleSize := desc.TupleSize()
	body := raw[headerBytes:]
	for slot := 0; slot < numSlots; slot++ {
		if !bitSet(raw, slot) {
			continue
		}
		start := slot * tupleSize
		buf := bytes.NewBuffer(body[start : start+tupleSize])
		t, err := readTupleFrom(buf, desc)
		if err != nil {
			return nil, err
		}
		t.Rid = &RecordId{Page: id, Slot: slot}
		p.tuples[slot] = t
	}
	cp := make([]byte, pageSize)
	copy(cp, raw)
	p.beforeImage = cp
	return p, nil
}

// bitSet reads bit `slot` of the header bitmap: big-endian bit order within
// a byte, so bit 7 (the high bit) of byte 0 is slot 0.
func bitSet(raw []byte, slot int) bool {
	byteIdx := slot / 8
	bitIdx := uint(7 - slot%8)
	return raw[byteIdx]&(1<<bitIdx) != 0
}

func setBit(raw []byte, slot int, v bool) {
	byteIdx := slot / 8
	bitIdx := uint(7 - slot%8)
	if v {
		raw[byteIdx] |= 1 << bitIdx
	} else {
		raw[byteIdx] &^= 1 << bitIdx
	}
}

// NewHeapPageFromBytes is newHeapPageFromBytes's exported form, for
// collaborator packages (wal's recovery-log reader) that need to
// reconstruct a page outside of a HeapFile.
func NewHeapPageFromBytes(id PageId, desc *TupleDesc, pageSize int, raw []byte) (*HeapPage, error) {
	return newHeapPageFromBytes(id, desc, pageSize, raw)
}

func (p *HeapPage) PageId() PageId { return p.id }

// GetTuple returns the tuple at slot, or nil if the slot is unoccupied.
func (p *HeapPage) GetTuple(slot int) (*Tuple, error) {
	if slot < 0 || slot >= p.numSlots {
		return nil, newErr(NotFoundKind, "slot %d out of range [0,%d)", slot, p.numSlots)
	}
	return p.tuples[slot], nil
}

func (p *HeapPage) NumSlots() int { return p.numSlots }

// NumEmptySlots counts unoccupied slots.
func (p *HeapPage) NumEmptySlots() int {
	n := 0
	for _, t := range p.tuples {
		if t == nil {
			n++
		}
	}
	return n
}

// InsertTuple writes t into the lowest-index empty slot. t's schema must
// match the page's TupleDesc exactly.
func (p *HeapPage) InsertTuple(t *Tuple) error {
	if !t.Desc.Equals(p.desc) {
		return newErr(DbErrorKind, "tuple schema does not match page schema")
	}
	for slot, existing := range p.tuples {
		if existing != nil {
			continue
		}
		stored := &Tuple{Desc: *p.desc, Fields: t.Fields, Rid: &RecordId{Page: p.id, Slot: slot}}
		p.tuples[slot] = stored
		t.Rid = stored.Rid
		p.dirty = true
		return nil
	}
	return newErr(NotEnoughSpaceKind, "page %v has no empty slot", p.id)
}

// DeleteTuple clears the slot referenced by t.Rid. t.Rid must name this
// page and an occupied slot whose contents match t.
func (p *HeapPage) DeleteTuple(t *Tuple) error {
	if t.Rid == nil || t.Rid.Page != p.id {
		return newErr(NotFoundKind, "TupleNotOnPage: tuple has no record id on page %v", p.id)
	}
	slot := t.Rid.Slot
	if slot < 0 || slot >= p.numSlots || p.tuples[slot] == nil {
		return newErr(NotFoundKind, "TupleNotOnPage: slot %d not occupied on page %v", slot, p.id)
	}
	if !p.tuples[slot].Equals(t) {
		return newErr(NotFoundKind, "TupleNotOnPage: slot %d contents do not match tuple", slot)
	}
	p.tuples[slot] = nil
	t.Rid = nil
	p.dirty = true
	return nil
}

// Iterator returns a lazy, finite sequence of occupied tuples in ascending
// slot order. It is not restartable across page mutation: a fresh call
// always starts a new cursor, but mutating the page mid-iteration yields
// undefined membership for the remainder of that cursor.
func (p *HeapPage) Iterator() func() (*Tuple, error) {
	slot := 0
	return func() (*Tuple, error) {
		for slot < p.numSlots {
			t := p.tuples[slot]
			slot++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}

func (p *HeapPage) IsDirty() (bool, TransactionID) {
	return p.dirty, p.dirtiedBy
}

func (p *HeapPage) MarkDirty(dirty bool, tid TransactionID) {
	p.dirty = dirty
	if dirty {
		p.dirtiedBy = tid
	}
}

// GetBeforeImage returns a HeapPage reconstructed from the retained
// before-image bytes.
func (p *HeapPage) GetBeforeImage() (*HeapPage, error) {
	return newHeapPageFromBytes(p.id, p.desc, p.pageSize, p.beforeImage)
}

// SetBeforeImage re-captures the current serialized bytes as the
// before-image, called by the buffer pool on commit.
func (p *HeapPage) SetBeforeImage() {
	p.beforeImage = p.serializeLocked()
}

func (p *HeapPage) BeforeImageBytes() []byte {
	cp := make([]byte, len(p.beforeImage))
	copy(cp, p.beforeImage)
	return cp
}

// Serialize returns the exact PageSize-byte on-disk representation.
func (p *HeapPage) Serialize() ([]byte, error) {
	return p.serializeChecked()
}

func (p *HeapPage) serializeChecked() ([]byte, error) {
	out := make([]byte, p.pageSize)
	tupleSize := p.desc.TupleSize()
	body := out[p.headerBytes:]
	for slot, t := range p.tuples {
		if t == nil {
			continue
		}
		setBit(out, slot, true)
		var buf bytes.Buffer
		if err := t.writeTo(&buf); err != nil {
			return nil, err
		}
		start := slot * tupleSize
		copy(body[start:start+tupleSize], buf.Bytes())
	}
	return out, nil
}

// serializeLocked is serializeChecked without the error return, used at
// construction and by SetBeforeImage; an encoding error is dropped.
func (p *HeapPage) serializeLocked() []byte {
	out, _ := p.serializeChecked()
	return out
}
