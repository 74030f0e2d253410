package query

import (
	"iter"
	"sort"
	"strings"
)

// Pipeline is an immutable pairing of a source sequence and a composed
// transform. Every method returns a new pipeline; the receiver stays valid.
// Whether a pipeline can be iterated more than once depends on the
// underlying source: a single-pass generator makes every derived pipeline
// single-pass too. That is a caller contract, not an engine guarantee.
type Pipeline[T any] struct {
	seq iter.Seq[T]
}

// From wraps an arbitrary sequence.
func From[T any](seq iter.Seq[T]) Pipeline[T] {
	return Pipeline[T]{seq: seq}
}

// FromSlice wraps an in-memory slice. The resulting pipeline is re-iterable.
func FromSlice[T any](items []T) Pipeline[T] {
	return Pipeline[T]{seq: func(yield func(T) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}}
}

// Concat chains several sequences into one pipeline.
func Concat[T any](seqs ...iter.Seq[T]) Pipeline[T] {
	return Pipeline[T]{seq: func(yield func(T) bool) {
		for _, seq := range seqs {
			for item := range seq {
				if !yield(item) {
					return
				}
			}
		}
	}}
}

// Seq exposes the composed sequence.
func (p Pipeline[T]) Seq() iter.Seq[T] {
	if p.seq == nil {
		return func(func(T) bool) {}
	}
	return p.seq
}

// Filter keeps records matching the predicate. Lazy.
func (p Pipeline[T]) Filter(pred Predicate[T]) Pipeline[T] {
	src := p.Seq()
	return Pipeline[T]{seq: func(yield func(T) bool) {
		for item := range src {
			if pred.Match(item) && !yield(item) {
				return
			}
		}
	}}
}

// Exclude drops records matching the predicate. Lazy.
func (p Pipeline[T]) Exclude(pred Predicate[T]) Pipeline[T] {
	return p.Filter(pred.Not())
}

// Limit keeps at most n records. Lazy; safe over unbounded upstreams.
func (p Pipeline[T]) Limit(n int) Pipeline[T] {
	src := p.Seq()
	return Pipeline[T]{seq: func(yield func(T) bool) {
		if n <= 0 {
			return
		}
		count := 0
		for item := range src {
			if !yield(item) {
				return
			}
			count++
			if count >= n {
				return
			}
		}
	}}
}

// Slice keeps records in the half-open index interval [start, stop). A
// negative stop means unbounded. Lazy.
func (p Pipeline[T]) Slice(start, stop int) Pipeline[T] {
	src := p.Seq()
	return Pipeline[T]{seq: func(yield func(T) bool) {
		if start < 0 {
			start = 0
		}
		index := 0
		for item := range src {
			if stop >= 0 && index >= stop {
				return
			}
			if index >= start {
				if !yield(item) {
					return
				}
			}
			index++
		}
	}}
}

// OrderBy sorts by one or more lookup paths. A leading '-' means descending.
// The sort is stable and lexicographic across fields. OrderBy materializes
// the whole upstream before yielding anything.
func (p Pipeline[T]) OrderBy(fields ...string) Pipeline[T] {
	if len(fields) == 0 {
		return p
	}

	type sortKey struct {
		segments []string
		path     string
		desc     bool
	}
	keys := make([]sortKey, 0, len(fields))
	for _, field := range fields {
		desc := false
		if strings.HasPrefix(field, "-") {
			desc = true
			field = field[1:]
		}
		keys = append(keys, sortKey{
			segments: strings.Split(field, Separator),
			path:     field,
			desc:     desc,
		})
	}

	src := p.Seq()
	return Pipeline[T]{seq: func(yield func(T) bool) {
		items := collect(src)
		sort.SliceStable(items, func(a, b int) bool {
			for _, key := range keys {
				va := resolvePath(items[a], key.path, key.segments)
				vb := resolvePath(items[b], key.path, key.segments)
				c, err := compareValues(va, vb)
				if err != nil {
					panic(err)
				}
				if c == 0 {
					continue
				}
				if key.desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}}
}

// Reverse yields the upstream in reverse order, materializing it first.
func (p Pipeline[T]) Reverse() Pipeline[T] {
	src := p.Seq()
	return Pipeline[T]{seq: func(yield func(T) bool) {
		items := collect(src)
		for i := len(items) - 1; i >= 0; i-- {
			if !yield(items[i]) {
				return
			}
		}
	}}
}

// Distinct drops records whose key was already seen, preserving first
// occurrence order. A nil key function uses the record itself, which must
// then be comparable. Distinct materializes its bookkeeping as it goes but
// yields lazily per record.
func (p Pipeline[T]) Distinct(key func(T) any) Pipeline[T] {
	src := p.Seq()
	return Pipeline[T]{seq: func(yield func(T) bool) {
		seen := make(map[any]struct{})
		for item := range src {
			k := any(item)
			if key != nil {
				k = key(item)
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if !yield(item) {
				return
			}
		}
	}}
}

// Prepend yields the other sequence before the pipeline's own records.
func (p Pipeline[T]) Prepend(other iter.Seq[T]) Pipeline[T] {
	return Concat(other, p.Seq())
}

// Append yields the other sequence after the pipeline's own records.
func (p Pipeline[T]) Append(other iter.Seq[T]) Pipeline[T] {
	return Concat(p.Seq(), other)
}

// Enumerate pairs each record with a counter beginning at start. The
// 1-based enumeration assigned before download submission comes from here
// and is fixed regardless of completion order.
func (p Pipeline[T]) Enumerate(start int) iter.Seq2[int, T] {
	src := p.Seq()
	return func(yield func(int, T) bool) {
		n := start
		for item := range src {
			if !yield(n, item) {
				return
			}
			n++
		}
	}
}

// Collect drains the pipeline into a slice.
func (p Pipeline[T]) Collect() []T {
	return collect(p.Seq())
}

func collect[T any](seq iter.Seq[T]) []T {
	var items []T
	for item := range seq {
		items = append(items, item)
	}
	return items
}
