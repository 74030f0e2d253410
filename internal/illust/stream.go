package illust

import "iter"

// Stream is a single-pass lazy sequence of illusts.
//
// Call Next until it returns false, read the current record with Illust, then
// check Err. A Stream must not be iterated twice; once exhausted it stays
// exhausted. Sources that need re-iteration hand out a fresh Stream per call.
type Stream struct {
	pull    func() (Illust, bool, error)
	current Illust
	err     error
	done    bool
}

// NewStream wraps a pull function. The function returns the next record, a
// flag reporting whether a record was produced, and any fetch error. A fetch
// error terminates the stream.
func NewStream(pull func() (Illust, bool, error)) *Stream {
	return &Stream{pull: pull}
}

// FromSlice builds a Stream over an in-memory batch.
func FromSlice(items []Illust) *Stream {
	index := 0
	return NewStream(func() (Illust, bool, error) {
		if index >= len(items) {
			return Illust{}, false, nil
		}
		item := items[index]
		index++
		return item, true, nil
	})
}

// Next advances the stream. It returns false when the stream is exhausted or
// a fetch error occurred; distinguish the two with Err.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	item, ok, err := s.pull()
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if !ok {
		s.done = true
		return false
	}
	s.current = item
	return true
}

// Illust returns the record produced by the last successful Next.
func (s *Stream) Illust() Illust {
	return s.current
}

// Err reports the fetch error that terminated the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Exhausted reports whether the stream has ended.
func (s *Stream) Exhausted() bool {
	return s.done
}

// Seq adapts the remainder of the stream to an iter.Seq for pipeline
// composition. Iteration stops at the first fetch error, which stays
// readable through Err. The adapter consumes the stream.
func (s *Stream) Seq() iter.Seq[Illust] {
	return func(yield func(Illust) bool) {
		for s.Next() {
			if !yield(s.current) {
				return
			}
		}
	}
}

// Collect drains the stream into a slice.
func (s *Stream) Collect() ([]Illust, error) {
	var items []Illust
	for s.Next() {
		items = append(items, s.current)
	}
	return items, s.err
}
