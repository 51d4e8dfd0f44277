package bptdb

import "strconv"

// Key is a tree key normalized into the signed 32-bit key space.
type Key struct {
	v      int32
	hashed bool
}

func IntKey(v int32) Key {
	return Key{v: v}
}

func StringKey(s string) Key {
	return Key{v: HashKey([]byte(s)), hashed: true}
}

func BytesKey(b []byte) Key {
	return Key{v: HashKey(b), hashed: true}
}

// ParseKey treats a base 10 int32 literal as an integer key and hashes anything else.
func ParseKey(s string) Key {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return StringKey(s)
	}
	return IntKey(int32(n))
}

func (k Key) Int32() int32 {
	return k.v
}

// Hashed reports whether the key was produced by HashKey.
func (k Key) Hashed() bool {
	return k.hashed
}

func (k Key) String() string {
	return strconv.FormatInt(int64(k.v), 10)
}
