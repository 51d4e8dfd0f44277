package bptdb

import (
	"encoding/binary"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/nyan233/bptdb/internal/sys"
	"github.com/pkg/errors"
)

// Storage is the flat byte store the tree lives in. ReadAt follows io.ReaderAt and returns
// io.EOF when fewer than len(p) bytes exist past off.
type Storage interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
	Truncate(size int64) error
}

var (
	_ Storage = new(fileStorage)
	_ Storage = new(memStorage)
)

// fileStorage keeps no handle open: every access opens the file, does one positioned read
// or write and closes it again.
type fileStorage struct {
	path       string
	syncWrites bool
}

// NewFileStorage returns a Storage backed by the file at path. A file that does not exist
// yet reads as empty and is created by the first write.
func NewFileStorage(path string, syncWrites bool) Storage {
	return &fileStorage{
		path:       path,
		syncWrites: syncWrites,
	}
}

func (f *fileStorage) ReadAt(p []byte, off int64) (n int, err error) {
	file, err := sys.OpenFile(f.path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, io.EOF
		}
		return 0, err
	}
	defer file.Close()
	return file.ReadAt(p, off)
}

func (f *fileStorage) WriteAt(p []byte, off int64) (n int, err error) {
	file, err := sys.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, err
	}
	defer func() {
		closeErr := file.Close()
		if err == nil {
			err = closeErr
		}
	}()
	n, err = file.WriteAt(p, off)
	if err != nil {
		return
	}
	if f.syncWrites {
		err = sys.Datasync(file)
	}
	return
}

func (f *fileStorage) Size() (int64, error) {
	stat, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return stat.Size(), nil
}

func (f *fileStorage) Truncate(size int64) error {
	file, err := sys.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	err = file.Truncate(size)
	closeErr := file.Close()
	if err != nil {
		return err
	}
	return closeErr
}

type memStorage struct {
	mu  sync.Mutex
	dat []byte
}

// NewMemStorage returns an empty Storage held in memory.
func NewMemStorage() Storage {
	return new(memStorage)
}

func (m *memStorage) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 {
		return 0, errors.Errorf("negative offset %d", off)
	}
	if off >= int64(len(m.dat)) {
		return 0, io.EOF
	}
	n := copy(p, m.dat[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memStorage) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 {
		return 0, errors.Errorf("negative offset %d", off)
	}
	if end := off + int64(len(p)); end > int64(len(m.dat)) {
		m.dat = append(m.dat, make([]byte, end-int64(len(m.dat)))...)
	}
	return copy(m.dat[off:], p), nil
}

func (m *memStorage) Size() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.dat)), nil
}

func (m *memStorage) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size < 0 {
		return errors.Errorf("negative size %d", size)
	}
	if size <= int64(len(m.dat)) {
		m.dat = m.dat[:size]
		return nil
	}
	m.dat = append(m.dat, make([]byte, size-int64(len(m.dat)))...)
	return nil
}

// pageStore reads and writes index pages and data records by absolute offset.
type pageStore struct {
	s    Storage
	stat *iStat
}

func newPageStore(s Storage, stat *iStat) *pageStore {
	return &pageStore{
		s:    s,
		stat: stat,
	}
}

// readFull maps every short read to ErrShortRead.
func (ps *pageStore) readFull(buf []byte, off int64) error {
	n, err := ps.s.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return errors.Wrapf(ErrShortRead, "offset %d: read %d of %d bytes", off, n, len(buf))
	}
	return errors.Wrapf(err, "read offset %d", off)
}

func (ps *pageStore) writeFull(buf []byte, off int64) error {
	n, err := ps.s.WriteAt(buf, off)
	if err != nil {
		return errors.Wrapf(err, "write offset %d", off)
	}
	if n != len(buf) {
		return errors.Errorf("write offset %d: wrote %d of %d bytes", off, n, len(buf))
	}
	return nil
}

// end returns the offset the next appended page or record gets.
func (ps *pageStore) end() (int64, error) {
	size, err := ps.s.Size()
	if err != nil {
		return 0, errors.Wrap(err, "storage size")
	}
	if _, err = checkOffset(size); err != nil {
		return 0, errors.Wrapf(err, "storage size %d", size)
	}
	return size, nil
}

func (ps *pageStore) readPage(off int64) (*page, error) {
	buf := make([]byte, PageSize)
	if err := ps.readFull(buf, off); err != nil {
		return nil, err
	}
	ps.stat.pageReads.Add(1)
	return decodePage(buf, off)
}

// writePage appends p when it has no offset yet and records the assigned offset on p.
func (ps *pageStore) writePage(p *page) error {
	if p.offset == offsetNone {
		off, err := ps.end()
		if err != nil {
			return err
		}
		p.offset = off
	}
	if err := ps.writeFull(p.encode(), p.offset); err != nil {
		return err
	}
	ps.stat.pageWrites.Add(1)
	return nil
}

// writeParent rewrites only the parent field of the page at off.
func (ps *pageStore) writeParent(off int64, parent int32) error {
	var buf [fieldSize]byte
	binary.BigEndian.PutUint32(buf[:], uint32(parent))
	if err := ps.writeFull(buf[:], off+fieldSize); err != nil {
		return err
	}
	ps.stat.parentWrites.Add(1)
	return nil
}

// blobLen returns the stored payload length of the record at off.
func (ps *pageStore) blobLen(off int64) (int, error) {
	var buf [1]byte
	if err := ps.readFull(buf[:], off); err != nil {
		return 0, err
	}
	return int(buf[0]), nil
}

func (ps *pageStore) readBlob(off int64) ([]byte, error) {
	n, err := ps.blobLen(off)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if err = ps.readFull(data, off+1); err != nil {
		return nil, err
	}
	ps.stat.blobReads.Add(1)
	return data, nil
}

// writeBlob stores data as a length prefixed record at off, or at the end of storage when
// off is offsetNone, and returns where it went.
func (ps *pageStore) writeBlob(data []byte, off int64) (int64, error) {
	if len(data) > MaxValueSize {
		return 0, errors.Wrapf(ErrValueTooLarge, "%d bytes, limit %d", len(data), MaxValueSize)
	}
	if off == offsetNone {
		var err error
		if off, err = ps.end(); err != nil {
			return 0, err
		}
	}
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, byte(len(data)))
	buf = append(buf, data...)
	if err := ps.writeFull(buf, off); err != nil {
		return 0, err
	}
	ps.stat.blobWrites.Add(1)
	return off, nil
}

func (ps *pageStore) truncate() error {
	return errors.Wrap(ps.s.Truncate(0), "truncate storage")
}
