package query

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/vecfs/attr"
	"github.com/hupe1980/vecfs/distance"
)

// Operator is a comparison operator.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreaterThan  Operator = ">"
	OpLessThan     Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// Kind is the predicate form.
type Kind uint8

const (
	KindCompare Kind = iota + 1
	KindSimilarity
)

func (k Kind) String() string {
	switch k {
	case KindCompare:
		return "compare"
	case KindSimilarity:
		return "similarity"
	default:
		return "invalid"
	}
}

// Query is a parsed predicate.
type Query struct {
	Kind     Kind
	Key      string
	Operator Operator

	// Value is the right-hand side of a compare predicate.
	Value attr.Value

	// Vector and Threshold belong to a similarity predicate.
	Vector    []float32
	Threshold float64
}

// Indexed reports whether the catalog can answer q.
func (q *Query) Indexed() bool {
	return q.Kind == KindCompare && q.Operator == OpEqual
}

// String renders q in query syntax.
func (q *Query) String() string {
	if q.Kind == KindSimilarity {
		return fmt.Sprintf("similarity(%s, %s) %s %s", q.Key, attr.Vector(q.Vector), q.Operator,
			strconv.FormatFloat(q.Threshold, 'g', -1, 64))
	}
	return fmt.Sprintf("%s %s %s", q.Key, q.Operator, q.Value)
}

// Matches evaluates q against one object's attributes. A missing key
// never matches, not even for !=.
func (q *Query) Matches(attrs attr.Attributes) bool {
	v, ok := attrs[q.Key]
	if !ok {
		return false
	}

	switch q.Kind {
	case KindCompare:
		switch q.Operator {
		case OpEqual:
			return attr.Equal(v, q.Value)
		case OpNotEqual:
			return !attr.Equal(v, q.Value)
		}
		c, ok := attr.Compare(v, q.Value)
		return ok && holds(q.Operator, c)
	case KindSimilarity:
		vec, ok := v.AsVector()
		if !ok {
			return false
		}
		sim, ok := distance.Cosine(vec, q.Vector)
		if !ok {
			return false
		}
		switch {
		case sim < q.Threshold:
			return holds(q.Operator, -1)
		case sim > q.Threshold:
			return holds(q.Operator, 1)
		default:
			return holds(q.Operator, 0)
		}
	default:
		return false
	}
}

// holds reports whether a comparison result c satisfies op.
func holds(op Operator, c int) bool {
	switch op {
	case OpEqual:
		return c == 0
	case OpNotEqual:
		return c != 0
	case OpGreaterThan:
		return c > 0
	case OpLessThan:
		return c < 0
	case OpGreaterEqual:
		return c >= 0
	case OpLessEqual:
		return c <= 0
	default:
		return false
	}
}
