// Package query implements the declarative record filtering and ordering
// engine.
//
// Predicates are pure boolean tests over records, built either from Go
// functions or from lookup expressions of the form
// "field__subfield__operator" paired with a comparison value, and composed
// with And/Or/Not/Xor. Composition never mutates an operand; every
// combinator returns a new predicate.
//
// Pipeline wraps a lazily produced sequence and layers filter, exclude,
// order-by, limit, distinct, reverse, slice, and concatenation transforms on
// top of it. Each transform returns a new pipeline; OrderBy, Reverse, and
// Distinct materialize their upstream before producing output, while Filter,
// Limit, and Slice stay lazy and work over unbounded upstreams.
//
// Unknown comparator names fail at predicate construction time with a
// configuration error. A lookup that does not resolve against a record is a
// programmer error and panics with a *LookupError.
package query
