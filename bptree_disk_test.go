package bptdb

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zbh255/gocode/random"
)

func initTest(t *testing.T) string {
	return t.TempDir()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemTree[V any](t *testing.T, codec Codec[V]) *BPTreeDisk[V] {
	bt := NewBPTreeDisk[V](Config{
		Logger:  testLogger(),
		Storage: NewMemStorage(),
	}, codec)
	require.NoError(t, bt.Init())
	return bt
}

func putInts(t *testing.T, bt *BPTreeDisk[string], keys ...int32) {
	for _, k := range keys {
		_, err := bt.Put(IntKey(k), "v"+strconv.Itoa(int(k)))
		require.NoError(t, err)
	}
}

func requireInts(t *testing.T, bt *BPTreeDisk[string], keys ...int32) {
	for _, k := range keys {
		v, found, err := bt.Get(IntKey(k))
		require.NoError(t, err)
		require.True(t, found, "key = %d", k)
		require.Equal(t, "v"+strconv.Itoa(int(k)), v)
	}
}

func seq(from, to int32) []int32 {
	keys := make([]int32, 0, to-from)
	for i := from; i < to; i++ {
		keys = append(keys, i)
	}
	return keys
}

func collect[V any](t *testing.T, bt *BPTreeDisk[V]) ([]int32, []V) {
	var (
		keys []int32
		vals []V
	)
	require.NoError(t, bt.Range(func(key int32, val V) bool {
		keys = append(keys, key)
		vals = append(vals, val)
		return true
	}))
	return keys, vals
}

func TestBPTreeDisk(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		_, found, err := bt.Get(IntKey(1))
		require.NoError(t, err)
		require.False(t, found)
		keys, _ := collect(t, bt)
		require.Empty(t, keys)
		info, err := bt.Check()
		require.NoError(t, err)
		require.Equal(t, TreeInfo{}, info)
		size, err := bt.store.s.Size()
		require.NoError(t, err)
		require.Equal(t, int64(0), size)
	})
	t.Run("Single", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		isReplace, err := bt.Put(IntKey(7), "seven")
		require.NoError(t, err)
		require.False(t, isReplace)
		root, err := bt.store.readPage(0)
		require.NoError(t, err)
		require.True(t, root.isLeaf())
		require.Equal(t, 1, root.count())
		v, found, err := bt.Get(IntKey(7))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "seven", v)
		_, found, err = bt.Get(IntKey(8))
		require.NoError(t, err)
		require.False(t, found)
	})
	t.Run("LastWriteWins", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		putInts(t, bt, seq(0, 100)...)
		isReplace, err := bt.Put(IntKey(42), "first")
		require.NoError(t, err)
		require.True(t, isReplace)
		isReplace, err = bt.Put(IntKey(42), "second")
		require.NoError(t, err)
		require.True(t, isReplace)
		v, found, err := bt.Get(IntKey(42))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "second", v)
		info, err := bt.Check()
		require.NoError(t, err)
		require.Equal(t, 100, info.Keys)
	})
	t.Run("Commutative", func(t *testing.T) {
		a := newMemTree[string](t, StringCodec{})
		b := newMemTree[string](t, StringCodec{})
		for _, i := range rand.Perm(2000) {
			putInts(t, a, int32(i)-1000)
		}
		for _, i := range rand.Perm(2000) {
			putInts(t, b, int32(i)-1000)
		}
		keysA, valsA := collect(t, a)
		keysB, valsB := collect(t, b)
		require.Equal(t, seq(-1000, 1000), keysA)
		require.Equal(t, keysA, keysB)
		require.Equal(t, valsA, valsB)
		requireInts(t, a, seq(-1000, 1000)...)
		requireInts(t, b, seq(-1000, 1000)...)
	})
	t.Run("CapacityBoundary", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		putInts(t, bt, seq(0, MaxKeys)...)
		root, err := bt.store.readPage(0)
		require.NoError(t, err)
		require.True(t, root.isLeaf())
		require.Equal(t, MaxKeys, root.count())
		require.Equal(t, uint64(0), bt.Stat().Splits)

		putInts(t, bt, MaxKeys)
		stat := bt.Stat()
		require.Equal(t, uint64(1), stat.Splits)
		require.Equal(t, uint64(1), stat.RootSplits)
		root, err = bt.store.readPage(0)
		require.NoError(t, err)
		require.False(t, root.isLeaf())
		require.Equal(t, 2, root.count())
		require.Equal(t, infimumKey, root.slots[0].key)
		require.Equal(t, int32(MaxKeys/2), root.slots[1].key)

		// the old root moved to the end of the file and keeps the lower half
		left, err := bt.store.readPage(int64(root.slots[0].val))
		require.NoError(t, err)
		require.True(t, left.isLeaf())
		require.Equal(t, int32(0), left.parent)
		require.Equal(t, seq(0, MaxKeys/2), pageKeys(left))
		right, err := bt.store.readPage(int64(root.slots[1].val))
		require.NoError(t, err)
		require.True(t, right.isLeaf())
		require.Equal(t, seq(MaxKeys/2, MaxKeys+1), pageKeys(right))
		require.Greater(t, left.offset, right.offset)

		requireInts(t, bt, seq(0, MaxKeys+1)...)
		info, err := bt.Check()
		require.NoError(t, err)
		require.Equal(t, TreeInfo{Height: 2, Pages: 3, Leaves: 2, Keys: MaxKeys + 1}, info)
	})
	t.Run("Scenario", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		putInts(t, bt, seq(0, 31)...)
		v, found, err := bt.Get(IntKey(15))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "v15", v)
		putInts(t, bt, 31)
		requireInts(t, bt, seq(0, 32)...)
		_, err = bt.Check()
		require.NoError(t, err)
	})
	t.Run("Descending", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		for i := int32(3000); i > 0; i-- {
			putInts(t, bt, i)
		}
		keys, _ := collect(t, bt)
		require.Equal(t, seq(1, 3001), keys)
		info, err := bt.Check()
		require.NoError(t, err)
		require.Equal(t, 3000, info.Keys)
		require.GreaterOrEqual(t, info.Height, 3)
	})
	t.Run("ExtremeKeys", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		keys := []int32{0, math.MaxInt32, math.MinInt32, -1, 1, math.MinInt32 + 1, math.MaxInt32 - 1}
		for i := int32(0); i < 200; i++ {
			keys = append(keys, math.MinInt32+2+i, math.MaxInt32-2-i)
		}
		putInts(t, bt, keys...)
		requireInts(t, bt, keys...)
		got, _ := collect(t, bt)
		require.Len(t, got, len(keys))
		require.Equal(t, int32(math.MinInt32), got[0])
		require.Equal(t, int32(math.MaxInt32), got[len(got)-1])
		_, err := bt.Check()
		require.NoError(t, err)
	})
	t.Run("StringKeys", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		want := make(map[int32]string)
		for i := 0; i < 1000; i++ {
			name := "user-" + strconv.Itoa(i)
			_, err := bt.Put(StringKey(name), name)
			require.NoError(t, err)
			want[StringKey(name).Int32()] = name
		}
		for _, name := range want {
			v, found, err := bt.Get(StringKey(name))
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, name, v)
		}
		_, found, err := bt.Get(StringKey("nobody"))
		require.NoError(t, err)
		require.False(t, found)
		info, err := bt.Check()
		require.NoError(t, err)
		require.Equal(t, len(want), info.Keys)
	})
	t.Run("RandomValues", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		want := make(map[int32]string)
		for _, i := range rand.Perm(5000) {
			v := random.GenStringOnAscii(uint32(1 + rand.IntN(MaxValueSize)))
			_, err := bt.Put(IntKey(int32(i)), v)
			require.NoError(t, err)
			want[int32(i)] = v
		}
		for k, v := range want {
			got, found, err := bt.Get(IntKey(k))
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, v, got)
		}
		info, err := bt.Check()
		require.NoError(t, err)
		require.Equal(t, 5000, info.Keys)
		require.GreaterOrEqual(t, info.Height, 3)
		stat := bt.Stat()
		// every split adds a sibling, a root split also adds the relocated root
		require.Equal(t, uint64(info.Pages-1), stat.Splits+stat.RootSplits)
		require.Equal(t, uint64(info.Height-1), stat.RootSplits)
	})
	t.Run("Relocation", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		putInts(t, bt, seq(0, 100)...)
		_, err := bt.Put(IntKey(50), "a much longer value than before")
		require.NoError(t, err)
		require.Equal(t, uint64(1), bt.Stat().BlobRelocations)
		v, _, err := bt.Get(IntKey(50))
		require.NoError(t, err)
		require.Equal(t, "a much longer value than before", v)

		size, err := bt.store.s.Size()
		require.NoError(t, err)
		_, err = bt.Put(IntKey(50), "short")
		require.NoError(t, err)
		require.Equal(t, uint64(1), bt.Stat().BlobRelocations)
		after, err := bt.store.s.Size()
		require.NoError(t, err)
		require.Equal(t, size, after)
		v, _, err = bt.Get(IntKey(50))
		require.NoError(t, err)
		require.Equal(t, "short", v)
		requireInts(t, bt, seq(0, 50)...)
		requireInts(t, bt, seq(51, 100)...)
	})
	t.Run("ValueTooLarge", func(t *testing.T) {
		bt := newMemTree[[]byte](t, BytesCodec{})
		_, err := bt.Put(IntKey(1), make([]byte, MaxValueSize+1))
		require.ErrorIs(t, err, ErrValueTooLarge)
		size, err := bt.store.s.Size()
		require.NoError(t, err)
		require.Equal(t, int64(0), size)

		_, err = bt.Put(IntKey(1), make([]byte, MaxValueSize))
		require.NoError(t, err)
		v, found, err := bt.Get(IntKey(1))
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, v, MaxValueSize)
	})
	t.Run("Range", func(t *testing.T) {
		bt := newMemTree[int64](t, Int64Codec{})
		for _, i := range rand.Perm(500) {
			_, err := bt.Put(IntKey(int32(i)), int64(i)*3)
			require.NoError(t, err)
		}
		var n int32
		require.NoError(t, bt.Range(func(key int32, val int64) bool {
			require.Equal(t, n, key)
			require.Equal(t, int64(key)*3, val)
			n++
			return n < 100
		}))
		require.Equal(t, int32(100), n)
	})
	t.Run("JsonValues", func(t *testing.T) {
		type point struct {
			X, Y int
		}
		bt := newMemTree[point](t, JsonTypeCodec[point]{})
		for i := 0; i < 300; i++ {
			_, err := bt.Put(IntKey(int32(i)), point{X: i, Y: -i})
			require.NoError(t, err)
		}
		v, found, err := bt.Get(IntKey(123))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, point{X: 123, Y: -123}, v)
	})
}

func TestBPTreeDiskPersistence(t *testing.T) {
	dir := initTest(t)
	cfg := Config{
		RootDir: dir,
		Name:    "persist.bpt",
		Logger:  testLogger(),
	}
	bt := NewBPTreeDisk[string](cfg, StringCodec{})
	require.NoError(t, bt.Init())
	for _, i := range rand.Perm(1000) {
		putInts(t, bt, int32(i))
	}
	require.NoError(t, bt.Close())
	_, _, err := bt.Get(IntKey(1))
	require.ErrorIs(t, err, ErrNotInit)

	cfg.SyncWrites = true
	bt = NewBPTreeDisk[string](cfg, StringCodec{})
	require.NoError(t, bt.Init())
	requireInts(t, bt, seq(0, 1000)...)
	putInts(t, bt, seq(1000, 1100)...)
	info, err := bt.Check()
	require.NoError(t, err)
	require.Equal(t, 1100, info.Keys)

	require.NoError(t, bt.Reset())
	_, found, err := bt.Get(IntKey(1))
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, bt.Close())
}

func TestBPTreeDiskInit(t *testing.T) {
	bt := NewBPTreeDisk[string](Config{Storage: NewMemStorage()}, nil)
	require.ErrorIs(t, bt.Init(), ErrNilCodec)

	bt = NewBPTreeDisk[string](Config{RootDir: initTest(t)}, StringCodec{})
	require.Error(t, bt.Init())

	bt = NewBPTreeDisk[string](Config{Storage: NewMemStorage()}, StringCodec{})
	_, err := bt.Put(IntKey(1), "v")
	require.ErrorIs(t, err, ErrNotInit)
	_, err = bt.Check()
	require.ErrorIs(t, err, ErrNotInit)
	require.ErrorIs(t, bt.Close(), ErrNotInit)
}

func TestBPTreeDiskCorruption(t *testing.T) {
	t.Run("ShortRoot", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		_, err := bt.store.s.WriteAt([]byte("junk"), 0)
		require.NoError(t, err)
		_, found, err := bt.Get(IntKey(1))
		require.NoError(t, err)
		require.False(t, found)
		putInts(t, bt, 1)
		requireInts(t, bt, 1)
		info, err := bt.Check()
		require.NoError(t, err)
		require.Equal(t, 1, info.Keys)
	})
	t.Run("GarbageRoot", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		garbage := make([]byte, PageSize)
		for i := range garbage {
			garbage[i] = 0xff
		}
		_, err := bt.store.s.WriteAt(garbage, 0)
		require.NoError(t, err)
		_, _, err = bt.Get(IntKey(1))
		require.ErrorIs(t, err, ErrCorruptPage)
		_, err = bt.Put(IntKey(1), "v1")
		require.ErrorIs(t, err, ErrCorruptPage)
		// a full page that does not decode is left alone
		size, err := bt.store.s.Size()
		require.NoError(t, err)
		require.Equal(t, int64(PageSize), size)
	})
	t.Run("Cycle", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		root := newInternalPage()
		root.offset = rootOffset
		root.setInfimum(0)
		require.NoError(t, bt.store.writePage(root))
		_, _, err := bt.Get(IntKey(1))
		require.ErrorIs(t, err, ErrCorruptPage)
		_, err = bt.Check()
		require.ErrorIs(t, err, ErrCorruptPage)
	})
	t.Run("StaleParent", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		putInts(t, bt, seq(0, 2000)...)
		_, err := bt.Check()
		require.NoError(t, err)
		root, err := bt.store.readPage(0)
		require.NoError(t, err)
		require.NoError(t, bt.store.writeParent(int64(root.slots[1].val), 12345))
		_, err = bt.Check()
		require.ErrorIs(t, err, ErrCorruptPage)
	})
	t.Run("KeyOutOfRange", func(t *testing.T) {
		bt := newMemTree[string](t, StringCodec{})
		putInts(t, bt, seq(0, 100)...)
		root, err := bt.store.readPage(0)
		require.NoError(t, err)
		leaf, err := bt.store.readPage(int64(root.slots[0].val))
		require.NoError(t, err)
		leaf.slots[0].key = 99
		require.NoError(t, bt.store.writePage(leaf))
		_, err = bt.Check()
		require.ErrorIs(t, err, ErrCorruptPage)
	})
}

func BenchmarkBPTreeDisk(b *testing.B) {
	bt := NewBPTreeDisk[string](Config{
		Logger:  testLogger(),
		Storage: NewMemStorage(),
	}, StringCodec{})
	require.NoError(b, bt.Init())
	val := random.GenStringOnAscii(128)
	b.Run("Put", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, err := bt.Put(IntKey(int32(i)), val)
			if err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("Get", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, err := bt.Get(IntKey(int32(i)))
			if err != nil {
				b.Fatal(fmt.Errorf("get key %d: %w", i, err))
			}
		}
	})
}
