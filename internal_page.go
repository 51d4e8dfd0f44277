package bptdb

func newInternalPage() *page {
	return newPage(pageTypeInternal)
}

// setInfimum installs the slot that routes every key below the first separator.
func (p *page) setInfimum(child int32) {
	p.slots = append(p.slots[:0], slot{key: infimumKey, val: child})
}

// child returns the offset of the page responsible for k, the value of the nearest key
// not above k. Only an empty page has no answer.
func (p *page) child(k int32) (int32, bool) {
	lower, upper := p.find(k)
	switch {
	case lower != none:
		return p.slots[lower].val, true
	case upper != none:
		// k is below the infimum key itself, which only happens on a page without one
		return p.slots[upper].val, true
	default:
		return 0, false
	}
}

// splitInternal moves the separator up instead of copying it: the first slot moved to the
// sibling becomes the sibling's infimum and its key is returned for the parent.
func (p *page) splitInternal(sibling *page) int32 {
	upper := p.cutUpperHalf()
	sibling.setInfimum(upper[0].val)
	sibling.slots = append(sibling.slots, upper[1:]...)
	return upper[0].key
}
