package collective

import "fmt"

// resultSlots stores results by task index as they arrive in completion order
// and reads them back in index order.
type resultSlots[R any] struct {
	vals      []R
	filled    []bool
	remaining int
}

func newResultSlots[R any](n int) *resultSlots[R] {
	return &resultSlots[R]{vals: make([]R, n), filled: make([]bool, n), remaining: n}
}

// put writes the result of task i. Each slot may be written once.
func (s *resultSlots[R]) put(i int, v R) error {
	if i < 0 || i >= len(s.vals) {
		return fmt.Errorf("%s: result index %d out of range [0,%d)", Namespace, i, len(s.vals))
	}
	if s.filled[i] {
		return fmt.Errorf("%s: result slot %d written twice", Namespace, i)
	}
	s.vals[i] = v
	s.filled[i] = true
	s.remaining--
	return nil
}

func (s *resultSlots[R]) pending() int { return s.remaining }

// ordered returns the results in index order. It must only be called once every slot is filled.
func (s *resultSlots[R]) ordered() []R {
	out := make([]R, 0, len(s.vals))
	for i := range s.vals {
		out = append(out, s.vals[i])
	}
	return out
}
