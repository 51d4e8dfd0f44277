package bptdb

import (
	"math"
	"strconv"
)

const (
	// PageSize is the fixed on-disk size of every index page.
	PageSize = 256
	// fieldSize is the width of every integer stored in a page.
	fieldSize = 4
	// MaxKeys is the slot capacity of a page. It leaves one slot position of the page unused.
	MaxKeys = PageSize/(fieldSize*2) - 2
	// MaxValueSize is the largest payload a one byte length prefix can describe.
	MaxValueSize = math.MaxUint8

	pageHeaderSize = fieldSize * 2
	slotSize       = fieldSize * 2

	infimumKey int32 = math.MinInt32
	// offsetNone marks a page that has not been written yet.
	offsetNone int64 = -1
	rootOffset int64 = 0
	// bounds the descent so a cyclic file cannot hang search.
	maxTreeDepth = 64
)

type pageType uint8

const (
	pageTypeInternal pageType = iota
	pageTypeLeaf
)

func (t pageType) String() string {
	switch t {
	case pageTypeInternal:
		return "internal"
	case pageTypeLeaf:
		return "leaf"
	default:
		return "pageType(" + strconv.Itoa(int(t)) + ")"
	}
}

// slot is one (key, value) pair of a page. The value is a data record offset on leaf pages
// and a child page offset on internal pages.
type slot struct {
	key int32
	val int32
}

func checkOffset(off int64) (int32, error) {
	if off < 0 || off > math.MaxInt32 {
		return 0, ErrOffsetOverflow
	}
	return int32(off), nil
}
