package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Operator is a comparison supported by Query filters
type Operator string

const (
	OpEq     Operator = "eq"
	OpNeq    Operator = "neq"
	OpIn     Operator = "in"
	OpIsNull Operator = "is_null"
	OpLt     Operator = "lt"
	OpLte    Operator = "lte"
	OpGt     Operator = "gt"
	OpGte    Operator = "gte"
)

// Filter restricts a select to rows where Column compares to Value
type Filter struct {
	Column string
	Op     Operator
	Value  any
}

// Order sorts a select by Column
type Order struct {
	Column string
	Desc   bool
}

// Query describes a select: filters are joined with AND
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// Eq is shorthand for an equality filter
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// IsNull matches rows where column is NULL (Value true) or NOT NULL (Value false)
func IsNull(column string, null bool) Filter {
	return Filter{Column: column, Op: OpIsNull, Value: null}
}

// columnSet maps the public column names a repository accepts to SQL expressions
type columnSet map[string]string

// build renders the WHERE / ORDER BY / LIMIT suffix. Placeholders start at
// $argOffset+1 so the clause can follow fixed arguments.
func (q Query) build(columns columnSet, argOffset int) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", argOffset+len(args))
	}

	for _, f := range q.Filters {
		col, ok := columns[f.Column]
		if !ok {
			return "", nil, fmt.Errorf("unknown filter column %q", f.Column)
		}
		switch f.Op {
		case OpEq, "":
			where = append(where, col+" = "+next(f.Value))
		case OpNeq:
			where = append(where, col+" <> "+next(f.Value))
		case OpLt:
			where = append(where, col+" < "+next(f.Value))
		case OpLte:
			where = append(where, col+" <= "+next(f.Value))
		case OpGt:
			where = append(where, col+" > "+next(f.Value))
		case OpGte:
			where = append(where, col+" >= "+next(f.Value))
		case OpIn:
			where = append(where, col+" = ANY("+next(pq.Array(f.Value))+")")
		case OpIsNull:
			if null, _ := f.Value.(bool); null {
				where = append(where, col+" IS NULL")
			} else {
				where = append(where, col+" IS NOT NULL")
			}
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
	}

	var b strings.Builder
	if len(where) > 0 {
		b.WriteString(" AND ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			col, ok := columns[o.Column]
			if !ok {
				return "", nil, fmt.Errorf("unknown order column %q", o.Column)
			}
			if o.Desc {
				col += " DESC"
			}
			parts = append(parts, col)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(next(q.Limit))
	}

	return b.String(), args, nil
}
