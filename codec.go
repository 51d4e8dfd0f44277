package bptdb

import (
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	_ Codec[[]byte]            = new(BytesCodec)
	_ Codec[string]            = new(StringCodec)
	_ Codec[int64]             = new(Int64Codec)
	_ Codec[map[string]string] = new(JsonTypeCodec[map[string]string])
)

// Codec converts values to the record payload and back. Encodings longer than
// MaxValueSize are rejected by Put.
type Codec[T any] interface {
	Unmarshal(data []byte, v *T) error
	Marshal(v *T) ([]byte, error)
}

type BytesCodec struct{}

func (b BytesCodec) Unmarshal(data []byte, v *[]byte) error {
	*v = data
	return nil
}

func (b BytesCodec) Marshal(v *[]byte) ([]byte, error) {
	return *v, nil
}

type StringCodec struct{}

func (s StringCodec) Unmarshal(data []byte, v *string) error {
	*v = string(data)
	return nil
}

func (s StringCodec) Marshal(v *string) ([]byte, error) {
	return []byte(*v), nil
}

type Int64Codec struct{}

func (i Int64Codec) Unmarshal(data []byte, v *int64) error {
	if len(data) != 8 {
		return errors.Errorf("int64 record has %d bytes", len(data))
	}
	*v = int64(binary.BigEndian.Uint64(data))
	return nil
}

func (i Int64Codec) Marshal(v *int64) (b []byte, err error) {
	b = binary.BigEndian.AppendUint64(b, uint64(*v))
	return
}

type JsonTypeCodec[T any] struct{}

func (j JsonTypeCodec[T]) Unmarshal(data []byte, v *T) error {
	return json.Unmarshal(data, v)
}

func (j JsonTypeCodec[T]) Marshal(v *T) ([]byte, error) {
	return json.Marshal(v)
}
