package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/nyan233/bptdb"
	"github.com/pkg/errors"
)

// lookupCodec resolves a codec name before the database is opened.
func lookupCodec(name string) (bptdb.Codec[any], error) {
	switch name {
	case "json":
		return jsonCodec{}, nil
	case "string":
		return stringCodec{}, nil
	case "bytes":
		return bytesCodec{}, nil
	default:
		return nil, errors.Errorf("unknown codec %q", name)
	}
}

// jsonCodec decodes numbers as json.Number, so integers beyond 2^53 survive a read.
type jsonCodec struct{}

func (jsonCodec) Marshal(v *any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// stringCodec stores the raw UTF-8 text of string values.
type stringCodec struct{}

func (stringCodec) Marshal(v *any) ([]byte, error) {
	s, ok := (*v).(string)
	if !ok {
		return nil, errors.Errorf("string codec: value is %T", *v)
	}
	return []byte(s), nil
}

func (stringCodec) Unmarshal(data []byte, v *any) error {
	*v = string(data)
	return nil
}

// bytesCodec stores raw bytes. Dumps carry them as base64 strings, the way encoding/json
// renders []byte, so strings are base64 decoded on the way in.
type bytesCodec struct{}

func (bytesCodec) Marshal(v *any) ([]byte, error) {
	switch b := (*v).(type) {
	case []byte:
		return b, nil
	case string:
		return base64.StdEncoding.DecodeString(b)
	default:
		return nil, errors.Errorf("bytes codec: value is %T", *v)
	}
}

func (bytesCodec) Unmarshal(data []byte, v *any) error {
	*v = data
	return nil
}
