package bptdb

import (
	"cmp"
	"encoding/binary"
	"slices"

	"github.com/pkg/errors"
)

// none is the "no index" marker returned by page.find.
const none = -1

// page is the in-memory form of one 256 byte index page. Pages refer to each other only by
// file offset, a page never holds a pointer to another page.
type page struct {
	typ pageType
	// offset is offsetNone until the page is first written
	offset int64
	// parent is 0 for the root and for direct children of the root
	parent int32
	slots  []slot
}

func newPage(typ pageType) *page {
	return &page{
		typ:    typ,
		offset: offsetNone,
		slots:  make([]slot, 0, MaxKeys),
	}
}

func (p *page) isLeaf() bool {
	return p.typ == pageTypeLeaf
}

func (p *page) count() int {
	return len(p.slots)
}

// find returns the indexes of the nearest keys below and above k. When k is present both
// indexes point at it. Either side is none when k falls outside the stored keys.
func (p *page) find(k int32) (lower, upper int) {
	if len(p.slots) == 0 {
		return none, none
	}
	first, last := 0, len(p.slots)-1
	if p.slots[first].key > k {
		return none, first
	}
	if p.slots[last].key < k {
		return last, none
	}
	for last-first > 1 {
		mid := (first + last) / 2
		if p.slots[mid].key == k {
			return mid, mid
		}
		if p.slots[mid].key < k {
			first = mid
		} else {
			last = mid
		}
	}
	if p.slots[first].key == k {
		last = first
	} else if p.slots[last].key == k {
		first = last
	}
	return first, last
}

// add maps k to v, replacing the value when k is already present.
func (p *page) add(k, v int32) error {
	if len(p.slots) >= MaxKeys {
		return errPageFull
	}
	lower, upper := p.find(k)
	switch {
	case upper == none:
		p.slots = append(p.slots, slot{key: k, val: v})
	case lower == upper:
		p.slots[lower].val = v
	default:
		p.slots = slices.Insert(p.slots, upper, slot{key: k, val: v})
	}
	return nil
}

// setVal repoints an existing key. Unlike add it works on a full page.
func (p *page) setVal(k, v int32) bool {
	lower, upper := p.find(k)
	if lower == none || lower != upper {
		return false
	}
	p.slots[lower].val = v
	return true
}

// split moves the upper half of p into the empty sibling and returns the separator key
// the parent must map to the sibling.
func (p *page) split(sibling *page) int32 {
	if p.isLeaf() {
		return p.splitLeaf(sibling)
	}
	return p.splitInternal(sibling)
}

// cutUpperHalf keeps count/2 slots on p and returns a copy of the rest.
func (p *page) cutUpperHalf() []slot {
	mid := len(p.slots) / 2
	upper := slices.Clone(p.slots[mid:])
	p.slots = p.slots[:mid]
	return upper
}

func (p *page) sortSlots() {
	slices.SortFunc(p.slots, func(a, b slot) int {
		return cmp.Compare(a.key, b.key)
	})
}

// encode sorts the slots and renders the full fixed size page.
func (p *page) encode() []byte {
	p.sortSlots()
	buf := make([]byte, PageSize)
	binary.BigEndian.PutUint32(buf[0:], uint32(p.typ)|uint32(len(p.slots))<<1)
	binary.BigEndian.PutUint32(buf[fieldSize:], uint32(p.parent))
	off := pageHeaderSize
	for _, s := range p.slots {
		binary.BigEndian.PutUint32(buf[off:], uint32(s.key))
		binary.BigEndian.PutUint32(buf[off+fieldSize:], uint32(s.val))
		off += slotSize
	}
	return buf
}

func decodePage(buf []byte, offset int64) (*page, error) {
	if len(buf) < PageSize {
		return nil, errors.Wrapf(ErrShortRead, "page at offset %d: %d of %d bytes", offset, len(buf), PageSize)
	}
	tag := binary.BigEndian.Uint32(buf[0:])
	count := int(tag >> 1)
	if count > MaxKeys {
		return nil, errors.Wrapf(ErrCorruptPage, "page at offset %d: count %d exceeds %d", offset, count, MaxKeys)
	}
	p := newPage(pageType(tag & 1))
	p.offset = offset
	p.parent = int32(binary.BigEndian.Uint32(buf[fieldSize:]))
	off := pageHeaderSize
	for i := 0; i < count; i++ {
		p.slots = append(p.slots, slot{
			key: int32(binary.BigEndian.Uint32(buf[off:])),
			val: int32(binary.BigEndian.Uint32(buf[off+fieldSize:])),
		})
		off += slotSize
	}
	p.sortSlots()
	return p, nil
}
