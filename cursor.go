package bptdb

import "github.com/pkg/errors"

// cursor walks the leaf slots in ascending key order. The path from the root to the
// current leaf is kept on an explicit stack.
type cursor struct {
	store *pageStore
	path  stack
	leaf  *page
	idx   int
}

func newCursor(store *pageStore) *cursor {
	return &cursor{store: store}
}

// First moves to the smallest key. It reports false for a tree without keys.
func (c *cursor) First() (bool, error) {
	c.path.reset()
	c.leaf = nil
	root, err := c.store.readPage(rootOffset)
	if err != nil {
		if errors.Is(err, ErrShortRead) {
			return false, nil
		}
		return false, err
	}
	if err = c.descend(root); err != nil {
		return false, err
	}
	if c.leaf.count() > 0 {
		return true, nil
	}
	return c.nextLeaf()
}

func (c *cursor) Next() (bool, error) {
	if c.leaf == nil {
		return false, nil
	}
	c.idx++
	if c.idx < c.leaf.count() {
		return true, nil
	}
	return c.nextLeaf()
}

func (c *cursor) Key() int32 {
	return c.leaf.slots[c.idx].key
}

// Offset returns the data record offset of the current key.
func (c *cursor) Offset() int64 {
	return int64(c.leaf.slots[c.idx].val)
}

// descend follows leftmost children from p down to a leaf.
func (c *cursor) descend(p *page) (err error) {
	for !p.isLeaf() {
		if c.path.size() >= maxTreeDepth {
			return errors.Wrapf(ErrCorruptPage, "tree deeper than %d at offset %d", maxTreeDepth, p.offset)
		}
		if p.count() == 0 {
			return errors.Wrapf(ErrCorruptPage, "empty internal page at offset %d", p.offset)
		}
		c.path.push(stackElement{node: p, idx: 1})
		p, err = c.store.readPage(int64(p.slots[0].val))
		if err != nil {
			return err
		}
	}
	c.leaf = p
	c.idx = 0
	return nil
}

func (c *cursor) nextLeaf() (bool, error) {
	for {
		top := c.path.top()
		if top == nil {
			c.leaf = nil
			return false, nil
		}
		if top.idx >= top.node.count() {
			c.path.pop()
			continue
		}
		child := top.node.slots[top.idx].val
		top.idx++
		p, err := c.store.readPage(int64(child))
		if err != nil {
			return false, err
		}
		if err = c.descend(p); err != nil {
			return false, err
		}
		if c.leaf.count() > 0 {
			return true, nil
		}
	}
}
