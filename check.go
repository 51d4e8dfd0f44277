package bptdb

import (
	"math"

	"github.com/pkg/errors"
)

type TreeInfo struct {
	Height int
	Pages  int
	Leaves int
	Keys   int
}

type checkFrame struct {
	off    int64
	parent int32
	// keys of the page must lie in [lo, hi)
	lo, hi int64
	depth  int
}

// Check walks every page and verifies the structural invariants: slot counts, key order,
// infimum slots, key ranges, parent fields, unused bytes and equal leaf depth. A tree that
// does not exist yet is reported as empty.
func (bt *BPTreeDisk[V]) Check() (info TreeInfo, err error) {
	if err = bt.checkInit(); err != nil {
		return
	}
	var (
		frames  = []checkFrame{{off: rootOffset, lo: math.MinInt32, hi: math.MaxInt32 + 1, depth: 1}}
		visited = make(map[int64]struct{})
		buf     = make([]byte, PageSize)
	)
	for len(frames) > 0 {
		f := frames[len(frames)-1]
		frames = frames[:len(frames)-1]
		if _, ok := visited[f.off]; ok {
			return info, errors.Wrapf(ErrCorruptPage, "page at offset %d is referenced twice", f.off)
		}
		visited[f.off] = struct{}{}
		if err = bt.store.readFull(buf, f.off); err != nil {
			if f.off == rootOffset && errors.Is(err, ErrShortRead) {
				return TreeInfo{}, nil
			}
			return info, err
		}
		var p *page
		if p, err = decodePage(buf, f.off); err != nil {
			return info, err
		}
		if err = checkPage(p, buf, f); err != nil {
			return info, err
		}
		info.Pages++
		if p.isLeaf() {
			if info.Leaves == 0 {
				info.Height = f.depth
			} else if f.depth != info.Height {
				return info, errors.Wrapf(ErrCorruptPage, "leaf at offset %d has depth %d, want %d", f.off, f.depth, info.Height)
			}
			info.Leaves++
			info.Keys += p.count()
			continue
		}
		if f.depth >= maxTreeDepth {
			return info, errors.Wrapf(ErrCorruptPage, "tree deeper than %d at offset %d", maxTreeDepth, f.off)
		}
		// pushed right to left so children are visited in key order
		for i := p.count() - 1; i >= 0; i-- {
			lo, hi := f.lo, f.hi
			if i > 0 {
				lo = int64(p.slots[i].key)
			}
			if i+1 < p.count() {
				hi = int64(p.slots[i+1].key)
			}
			frames = append(frames, checkFrame{
				off:    int64(p.slots[i].val),
				parent: int32(f.off),
				lo:     lo,
				hi:     hi,
				depth:  f.depth + 1,
			})
		}
	}
	return info, nil
}

func checkPage(p *page, raw []byte, f checkFrame) error {
	if p.parent != f.parent {
		return errors.Wrapf(ErrCorruptPage, "page at offset %d names parent %d, want %d", p.offset, p.parent, f.parent)
	}
	if p.count() == 0 && (p.offset != rootOffset || !p.isLeaf()) {
		return errors.Wrapf(ErrCorruptPage, "empty %s page at offset %d", p.typ, p.offset)
	}
	if !bytesIsZero(raw[pageHeaderSize+p.count()*slotSize:]) {
		return errors.Wrapf(ErrCorruptPage, "page at offset %d has data past slot %d", p.offset, p.count())
	}
	first := 0
	if !p.isLeaf() {
		if p.slots[0].key != infimumKey {
			return errors.Wrapf(ErrCorruptPage, "internal page at offset %d has no infimum slot", p.offset)
		}
		first = 1
	}
	for i := first; i < p.count(); i++ {
		k := int64(p.slots[i].key)
		if i > 0 && p.slots[i-1].key == p.slots[i].key {
			return errors.Wrapf(ErrCorruptPage, "page at offset %d has key %d twice", p.offset, k)
		}
		if k < f.lo || k >= f.hi {
			return errors.Wrapf(ErrCorruptPage, "key %d at offset %d outside [%d, %d)", k, p.offset, f.lo, f.hi)
		}
	}
	return nil
}
