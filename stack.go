package bptdb

type stackElement struct {
	node *page
	// next slot of node to visit
	idx int
}

type stack struct {
	list []stackElement
}

func (s *stack) push(e stackElement) {
	s.list = append(s.list, e)
}

func (s *stack) pop() stackElement {
	if len(s.list) == 0 {
		return stackElement{
			node: nil,
		}
	}
	v := s.list[len(s.list)-1]
	s.list = s.list[:len(s.list)-1]
	return v
}

// top returns the last element in place so it can be advanced, or nil when empty.
func (s *stack) top() *stackElement {
	if len(s.list) == 0 {
		return nil
	}
	return &s.list[len(s.list)-1]
}

func (s *stack) size() int {
	return len(s.list)
}

func (s *stack) reset() {
	s.list = s.list[:0]
}
