package bptdb

func newLeafPage() *page {
	return newPage(pageTypeLeaf)
}

// lookup returns the data record offset stored for k.
func (p *page) lookup(k int32) (int32, bool) {
	lower, upper := p.find(k)
	if lower == none || lower != upper {
		return 0, false
	}
	return p.slots[lower].val, true
}

func (p *page) minKey() int32 {
	return p.slots[0].key
}

// splitLeaf copies the separator: the sibling keeps its smallest key and the same key
// goes to the parent.
func (p *page) splitLeaf(sibling *page) int32 {
	sibling.slots = append(sibling.slots, p.cutUpperHalf()...)
	return sibling.minKey()
}
