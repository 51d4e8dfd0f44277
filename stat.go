package bptdb

import "sync/atomic"

type ExportStat struct {
	PageReads       uint64
	PageWrites      uint64
	ParentWrites    uint64
	BlobReads       uint64
	BlobWrites      uint64
	BlobRelocations uint64
	Splits          uint64
	RootSplits      uint64
}

type iStat struct {
	pageReads       atomic.Uint64
	pageWrites      atomic.Uint64
	parentWrites    atomic.Uint64
	blobReads       atomic.Uint64
	blobWrites      atomic.Uint64
	blobRelocations atomic.Uint64
	splits          atomic.Uint64
	rootSplits      atomic.Uint64
}

func (s *iStat) export() ExportStat {
	return ExportStat{
		PageReads:       s.pageReads.Load(),
		PageWrites:      s.pageWrites.Load(),
		ParentWrites:    s.parentWrites.Load(),
		BlobReads:       s.blobReads.Load(),
		BlobWrites:      s.blobWrites.Load(),
		BlobRelocations: s.blobRelocations.Load(),
		Splits:          s.splits.Load(),
		RootSplits:      s.rootSplits.Load(),
	}
}
