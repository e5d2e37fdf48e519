package aggregate

// Number constrains the value types the predefined aggregators work over.
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Sum aggregates by addition; both operators are addition and zero is 0.
func Sum[T Number]() Aggregator[T] {
	add := func(agg, value T) T { return agg + value }
	return Aggregator[T]{SeqOp: add, CombOp: add}
}

// Count counts updates: the sequential operator ignores the value and adds
// one, the combining operator adds partial counts.
func Count[T Number]() Aggregator[T] {
	return Aggregator[T]{
		SeqOp:  func(agg, _ T) T { return agg + 1 },
		CombOp: func(agg, value T) T { return agg + value },
	}
}

// Min aggregates by minimum. The identity must be the largest representable
// value of T for the slot fold to be neutral.
func Min[T Number](identity T) Aggregator[T] {
	combine := func(agg, value T) T {
		if value < agg {
			return value
		}
		return agg
	}
	return Aggregator[T]{Zero: identity, SeqOp: combine, CombOp: combine}
}

// Max aggregates by maximum. The identity must be the smallest representable
// value of T.
func Max[T Number](identity T) Aggregator[T] {
	combine := func(agg, value T) T {
		if value > agg {
			return value
		}
		return agg
	}
	return Aggregator[T]{Zero: identity, SeqOp: combine, CombOp: combine}
}
