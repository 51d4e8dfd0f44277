package bptdb

import "encoding/binary"

func bytesIsZero(data []byte) bool {
	var v uint64
	for len(data) >= 8 {
		v |= binary.LittleEndian.Uint64(data)
		data = data[8:]
	}
	for _, b := range data {
		v |= uint64(b)
	}
	return v == 0
}
