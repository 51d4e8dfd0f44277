package bptdb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/nyan233/bptdb/internal/literal"
	"github.com/pkg/errors"
)

var dumpLineRe = regexp.MustCompile(`^\[\s*([0-9A-Za-z_\-]+)\s*,\s*(.+?)\s*\]$`)

// Dump writes one "[key, value]" line per entry in ascending key order, the value as JSON.
// Keys that were hashed are written as their hash.
func (bt *BPTreeDisk[V]) Dump(w io.Writer) (n int, err error) {
	bw := bufio.NewWriter(w)
	var writeErr error
	err = bt.Range(func(key int32, val V) bool {
		var text []byte
		if text, writeErr = json.Marshal(val); writeErr != nil {
			writeErr = errors.Wrapf(writeErr, "encode value of key %d", key)
			return false
		}
		if _, writeErr = fmt.Fprintf(bw, "[%d, %s]\n", key, text); writeErr != nil {
			return false
		}
		n++
		return true
	})
	if err != nil {
		return n, err
	}
	if writeErr != nil {
		return n, writeErr
	}
	return n, errors.Wrap(bw.Flush(), "flush dump")
}

// Load puts every "[key, value]" line of r into the tree. Integer keys stay integers, other
// keys are hashed. Values are JSON or object literals and are decoded into V as JSON, with
// numbers that land in an interface kept as json.Number.
func (bt *BPTreeDisk[V]) Load(r io.Reader) (n int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		key, val, err := parseDumpLine[V](text)
		if err != nil {
			return n, errors.Wrapf(err, "line %d", line)
		}
		if _, err = bt.Put(key, val); err != nil {
			return n, errors.Wrapf(err, "line %d", line)
		}
		n++
	}
	return n, errors.Wrap(sc.Err(), "read dump")
}

func parseDumpLine[V any](text string) (key Key, val V, err error) {
	m := dumpLineRe.FindStringSubmatch(text)
	if m == nil {
		err = errors.Wrapf(ErrParse, "line has invalid format: %q", text)
		return
	}
	key = ParseKey(m[1])
	raw := []byte(m[2])
	if !json.Valid(raw) {
		if raw, err = literal.ToJSON(m[2]); err != nil {
			err = errors.Wrapf(ErrParse, "value of key %s: %v", m[1], err)
			return
		}
	}
	// numbers decoded into interfaces stay json.Number so large integers keep every digit
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err = dec.Decode(&val); err != nil {
		err = errors.Wrapf(ErrParse, "value of key %s: %v", m[1], err)
	}
	return
}
