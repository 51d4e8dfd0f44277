package bptdb

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type Config struct {
	RootDir string
	Name    string
	Logger  *slog.Logger
	// SyncWrites datasyncs the file after every page or record write.
	SyncWrites bool
	// Storage replaces the file at RootDir/Name when set.
	Storage Storage
}

// BPTreeDisk is a B+Tree stored in one flat file. Its root page always lives at offset 0.
// A BPTreeDisk is not safe for concurrent use and the file must have a single writer.
type BPTreeDisk[V any] struct {
	cfg      Config
	logger   *slog.Logger
	store    *pageStore
	valCodec Codec[V]
	stat     iStat
}

func NewBPTreeDisk[V any](cfg Config, valCodec Codec[V]) *BPTreeDisk[V] {
	return &BPTreeDisk[V]{
		cfg:      cfg,
		valCodec: valCodec,
	}
}

func (bt *BPTreeDisk[V]) Init() error {
	if bt.valCodec == nil {
		return ErrNilCodec
	}
	bt.logger = bt.cfg.Logger
	if bt.logger == nil {
		bt.logger = slog.Default()
	}
	s := bt.cfg.Storage
	if s == nil {
		if bt.cfg.Name == "" {
			return errors.New("config: Name is empty")
		}
		if bt.cfg.RootDir != "" {
			if err := os.MkdirAll(bt.cfg.RootDir, 0755); err != nil {
				return errors.Wrap(err, "create root dir")
			}
		}
		s = NewFileStorage(filepath.Join(bt.cfg.RootDir, bt.cfg.Name), bt.cfg.SyncWrites)
	}
	bt.store = newPageStore(s, &bt.stat)
	return nil
}

// Close releases the tree. No file handle is held between calls, so nothing is flushed.
func (bt *BPTreeDisk[V]) Close() error {
	if bt.store == nil {
		return ErrNotInit
	}
	bt.store = nil
	return nil
}

func (bt *BPTreeDisk[V]) checkInit() error {
	if bt.store == nil {
		return ErrNotInit
	}
	return nil
}

func (bt *BPTreeDisk[V]) Stat() ExportStat {
	return bt.stat.export()
}

// Reset empties the storage. The next Put creates a new root.
func (bt *BPTreeDisk[V]) Reset() error {
	if err := bt.checkInit(); err != nil {
		return err
	}
	return bt.store.truncate()
}

func (bt *BPTreeDisk[V]) Get(key Key) (val V, found bool, err error) {
	if err = bt.checkInit(); err != nil {
		return
	}
	var data []byte
	data, found, err = bt.getRaw(key.Int32())
	if err != nil || !found {
		return
	}
	if err = bt.valCodec.Unmarshal(data, &val); err != nil {
		err = errors.Wrapf(err, "decode value of key %s", key)
		found = false
	}
	return
}

func (bt *BPTreeDisk[V]) getRaw(k int32) ([]byte, bool, error) {
	leaf, err := bt.search(k)
	if err != nil || leaf == nil {
		return nil, false, err
	}
	off, ok := leaf.lookup(k)
	if !ok {
		return nil, false, nil
	}
	data, err := bt.store.readBlob(int64(off))
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put maps key to val. isReplace reports that an existing value was overwritten.
// A replacement longer than the stored record is appended and the old record's bytes are
// abandoned, so repeated growing updates grow the file without bound.
func (bt *BPTreeDisk[V]) Put(key Key, val V) (isReplace bool, err error) {
	if err = bt.checkInit(); err != nil {
		return
	}
	data, err := bt.valCodec.Marshal(&val)
	if err != nil {
		return false, errors.Wrapf(err, "encode value of key %s", key)
	}
	if len(data) > MaxValueSize {
		return false, errors.Wrapf(ErrValueTooLarge, "key %s: %d bytes, limit %d", key, len(data), MaxValueSize)
	}
	return bt.putRaw(key.Int32(), data)
}

func (bt *BPTreeDisk[V]) putRaw(k int32, data []byte) (bool, error) {
	leaf, err := bt.search(k)
	if err != nil {
		return false, err
	}
	if leaf == nil {
		if leaf, err = bt.createRoot(); err != nil {
			return false, err
		}
	}
	if off, ok := leaf.lookup(k); ok {
		return true, bt.overwrite(leaf, k, int64(off), data)
	}
	off, err := bt.store.writeBlob(data, offsetNone)
	if err != nil {
		return false, err
	}
	err = leaf.add(k, int32(off))
	if err == nil {
		return false, bt.store.writePage(leaf)
	}
	if !errors.Is(err, errPageFull) {
		return false, err
	}
	return false, bt.splitPage(leaf, k, int32(off))
}

// search returns the leaf responsible for k, or nil when no tree exists yet.
func (bt *BPTreeDisk[V]) search(k int32) (*page, error) {
	off := rootOffset
	for depth := 0; depth < maxTreeDepth; depth++ {
		p, err := bt.store.readPage(off)
		if err != nil {
			if off == rootOffset && errors.Is(err, ErrShortRead) {
				return nil, nil
			}
			return nil, err
		}
		if p.isLeaf() {
			return p, nil
		}
		child, ok := p.child(k)
		if !ok {
			return nil, errors.Wrapf(ErrCorruptPage, "empty internal page at offset %d", off)
		}
		off = int64(child)
	}
	return nil, errors.Wrapf(ErrCorruptPage, "tree deeper than %d", maxTreeDepth)
}

// createRoot starts a new tree: an empty leaf at offset 0.
func (bt *BPTreeDisk[V]) createRoot() (*page, error) {
	size, err := bt.store.s.Size()
	if err != nil {
		return nil, errors.Wrap(err, "storage size")
	}
	if size > 0 {
		bt.logger.Warn("discarding storage without a readable root page", "size", size)
	}
	if err = bt.store.truncate(); err != nil {
		return nil, err
	}
	root := newLeafPage()
	root.offset = rootOffset
	if err = bt.store.writePage(root); err != nil {
		return nil, err
	}
	return root, nil
}

// overwrite replaces the record of an existing key. A record that does not grow is rewritten
// in place, a longer one is appended and the leaf slot repointed, leaving the old bytes unused.
func (bt *BPTreeDisk[V]) overwrite(leaf *page, k int32, off int64, data []byte) error {
	n, err := bt.store.blobLen(off)
	if err != nil {
		return err
	}
	if len(data) <= n {
		_, err = bt.store.writeBlob(data, off)
		return err
	}
	newOff, err := bt.store.writeBlob(data, offsetNone)
	if err != nil {
		return err
	}
	leaf.setVal(k, int32(newOff))
	bt.stat.blobRelocations.Add(1)
	bt.logger.Debug("record relocated", "key", k, "from", off, "to", newOff)
	return bt.store.writePage(leaf)
}

// splitPage adds (k, v) to the full page p. It splits p and hands the separator to the
// parent, and keeps going up while the parent is full too. Splitting the root relocates the
// old root and installs a new internal root at offset 0, which always has room.
//
// Pages are written one at a time: sibling, split page, then the parent. An interruption in
// between leaves a sibling that no parent points to.
func (bt *BPTreeDisk[V]) splitPage(p *page, k, v int32) (err error) {
	defer func() {
		if err != nil {
			bt.logger.Error("split propagation failed", "key", k, "err", err)
		}
	}()
	for {
		sibling := newPage(p.typ)
		sibling.parent = p.parent
		separator := p.split(sibling)
		target := p
		if k > separator {
			target = sibling
		}
		if err = target.add(k, v); err != nil {
			return errors.Wrapf(err, "add key %d after split", k)
		}
		if err = bt.store.writePage(sibling); err != nil {
			return err
		}
		if err = bt.store.writePage(p); err != nil {
			return err
		}
		if err = bt.adoptChildren(sibling); err != nil {
			return err
		}
		bt.stat.splits.Add(1)
		bt.logger.Debug("page split", "type", p.typ, "offset", p.offset, "sibling", sibling.offset, "separator", separator)

		var parent *page
		if p.offset == rootOffset {
			p.offset = offsetNone
			if err = bt.store.writePage(p); err != nil {
				return err
			}
			if err = bt.adoptChildren(p); err != nil {
				return err
			}
			parent = newInternalPage()
			parent.offset = rootOffset
			parent.parent = 0
			parent.setInfimum(int32(p.offset))
			bt.stat.rootSplits.Add(1)
			bt.logger.Debug("root split", "relocated", p.offset)
		} else {
			if parent, err = bt.store.readPage(int64(p.parent)); err != nil {
				return err
			}
			if parent.isLeaf() {
				return errors.Wrapf(ErrCorruptPage, "parent of page %d at offset %d is a leaf", p.offset, p.parent)
			}
		}
		err = parent.add(separator, int32(sibling.offset))
		if err == nil {
			return bt.store.writePage(parent)
		}
		if !errors.Is(err, errPageFull) {
			return err
		}
		p, k, v = parent, separator, int32(sibling.offset)
	}
}

// adoptChildren points the parent field of every child of p at p.
func (bt *BPTreeDisk[V]) adoptChildren(p *page) error {
	if p.isLeaf() {
		return nil
	}
	for _, s := range p.slots {
		if err := bt.store.writeParent(int64(s.val), int32(p.offset)); err != nil {
			return err
		}
	}
	return nil
}

// Range calls fn for every entry in ascending key order until fn returns false.
func (bt *BPTreeDisk[V]) Range(fn func(key int32, val V) bool) error {
	if err := bt.checkInit(); err != nil {
		return err
	}
	c := newCursor(bt.store)
	ok, err := c.First()
	for ; ok && err == nil; ok, err = c.Next() {
		var (
			data []byte
			val  V
		)
		data, err = bt.store.readBlob(c.Offset())
		if err != nil {
			return err
		}
		if err = bt.valCodec.Unmarshal(data, &val); err != nil {
			return errors.Wrapf(err, "decode value of key %d", c.Key())
		}
		if !fn(c.Key(), val) {
			return nil
		}
	}
	return err
}
