package bptdb

import "github.com/pkg/errors"

var (
	ErrValueTooLarge  = errors.New("value too large")
	ErrShortRead      = errors.New("short read")
	ErrCorruptPage    = errors.New("corrupt page")
	ErrOffsetOverflow = errors.New("offset overflow")
	ErrParse          = errors.New("parse error")
	ErrNilCodec       = errors.New("value codec is nil")
	ErrNotInit        = errors.New("tree is not initialized")

	// never escapes Put, the split algorithm consumes it
	errPageFull = errors.New("page full")
)
