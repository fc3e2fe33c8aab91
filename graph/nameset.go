package graph

// nameSet is an insertion-ordered set of project names.
// Traversal order depends only on the order edges were declared in.
type nameSet struct {
	order []string
	index map[string]struct{}
}

func newNameSet() *nameSet {
	return &nameSet{index: make(map[string]struct{})}
}

func (s *nameSet) has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// add returns false if name was already present.
func (s *nameSet) add(name string) bool {
	if s.has(name) {
		return false
	}
	s.index[name] = struct{}{}
	s.order = append(s.order, name)
	return true
}

func (s *nameSet) remove(name string) {
	if !s.has(name) {
		return
	}
	delete(s.index, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *nameSet) len() int {
	return len(s.order)
}

// list returns a copy of the names in insertion order.
func (s *nameSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *nameSet) clone() *nameSet {
	c := &nameSet{
		order: s.list(),
		index: make(map[string]struct{}, len(s.index)),
	}
	for k := range s.index {
		c.index[k] = struct{}{}
	}
	return c
}
