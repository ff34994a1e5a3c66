// Package query is a small structured predicate language compiled into
// parameterised SQL for the metadata and installed-state stores. Callers never
// concatenate SQL; each store supplies a Schema whitelisting the fields it
// understands.
package query

import (
	"fmt"
	"strings"

	"github.com/pkgforge/soar/pkg/errors"
)

// Field names a queryable attribute.
type Field string

// Known fields. A store may support only a subset.
const (
	FieldID          Field = "id"
	FieldRepo        Field = "repo_name"
	FieldPkg         Field = "pkg"
	FieldPkgID       Field = "pkg_id"
	FieldPkgName     Field = "pkg_name"
	FieldPkgType     Field = "pkg_type"
	FieldFamily      Field = "family"
	FieldVersion     Field = "version"
	FieldDescription Field = "description"
	FieldChecksum    Field = "checksum"
	FieldProvides    Field = "provides"
	FieldTag         Field = "tag"
	FieldMaintainer  Field = "maintainer"
	FieldProfile     Field = "profile"
	FieldPinned      Field = "pinned"
	FieldIsInstalled Field = "is_installed"
	FieldDetached    Field = "detached"
	FieldUnlinked    Field = "unlinked"
	FieldRank        Field = "rank"
)

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpEqFold
	OpNe
	OpContains
	OpIn
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpEqFold:
		return "=~"
	case OpNe:
		return "!="
	case OpContains:
		return "contains"
	case OpIn:
		return "in"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Cond is a single comparison, or a disjunction when Any is set.
type Cond struct {
	Field Field
	Op    Op
	Value any
	Any   []Cond
}

// Eq matches field == value.
func Eq(f Field, v any) Cond { return Cond{Field: f, Op: OpEq, Value: v} }

// EqFold matches field == value, ignoring ASCII case.
func EqFold(f Field, v string) Cond { return Cond{Field: f, Op: OpEqFold, Value: v} }

// Ne matches field != value.
func Ne(f Field, v any) Cond { return Cond{Field: f, Op: OpNe, Value: v} }

// Contains matches a case-insensitive substring.
func Contains(f Field, v string) Cond { return Cond{Field: f, Op: OpContains, Value: v} }

// In matches any of values. An empty list matches nothing.
func In(f Field, values ...any) Cond { return Cond{Field: f, Op: OpIn, Value: values} }

// Or matches when any of conds matches.
func Or(conds ...Cond) Cond { return Cond{Any: conds} }

// Order is one ORDER BY term.
type Order struct {
	Field Field
	Desc  bool
}

// Predicate is a conjunction of conditions with optional ordering and limit.
// The zero value matches everything.
type Predicate struct {
	Conds  []Cond
	Orders []Order
	Limit  int
}

// New returns a predicate holding conds.
func New(conds ...Cond) Predicate {
	return Predicate{Conds: conds}
}

// Where returns a copy of p with conds appended.
func (p Predicate) Where(conds ...Cond) Predicate {
	out := p
	out.Conds = append(append([]Cond(nil), p.Conds...), conds...)
	return out
}

// OrderBy returns a copy of p with an additional sort term.
func (p Predicate) OrderBy(f Field, desc bool) Predicate {
	out := p
	out.Orders = append(append([]Order(nil), p.Orders...), Order{Field: f, Desc: desc})
	return out
}

// WithLimit returns a copy of p returning at most n rows. n <= 0 means unlimited.
func (p Predicate) WithLimit(n int) Predicate {
	out := p
	out.Limit = n
	return out
}

// Lookup returns the value of the first top-level equality condition on f.
func (p Predicate) Lookup(f Field) (any, bool) {
	for _, c := range p.Conds {
		if c.Field == f && len(c.Any) == 0 && (c.Op == OpEq || c.Op == OpEqFold) {
			return c.Value, true
		}
	}
	return nil, false
}

// Without returns a copy of p with every top-level condition on f removed.
func (p Predicate) Without(f Field) Predicate {
	out := p
	out.Conds = nil
	for _, c := range p.Conds {
		if c.Field != f || len(c.Any) > 0 {
			out.Conds = append(out.Conds, c)
		}
	}
	return out
}

// Renderer produces SQL for a field that is not a plain column, such as a
// JSON array or a child table. It receives the placeholder-free operator and
// value and returns a fragment plus its arguments.
type Renderer func(op Op, value any) (string, []any, error)

// Schema maps fields to SQL for one store.
type Schema struct {
	// Columns maps a field to a column expression.
	Columns map[Field]string
	// Custom maps a field to a renderer; it wins over Columns.
	Custom map[Field]Renderer
}

// Compiled is the SQL form of a predicate.
type Compiled struct {
	Where string // without the WHERE keyword; "1=1" when empty
	Tail  string // ORDER BY / LIMIT clause, possibly empty
	Args  []any
}

// Compile translates p for schema s.
func (s Schema) Compile(p Predicate) (Compiled, error) {
	var (
		parts []string
		args  []any
	)
	for _, c := range p.Conds {
		frag, a, err := s.cond(c)
		if err != nil {
			return Compiled{}, err
		}
		parts = append(parts, frag)
		args = append(args, a...)
	}
	where := "1=1"
	if len(parts) > 0 {
		where = strings.Join(parts, " AND ")
	}

	var tail []string
	if len(p.Orders) > 0 {
		terms := make([]string, 0, len(p.Orders))
		for _, o := range p.Orders {
			col, ok := s.Columns[o.Field]
			if !ok {
				return Compiled{}, errors.Wrapf(errors.ErrInvalidQuery, "cannot order by %q", o.Field)
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms = append(terms, col+" "+dir)
		}
		tail = append(tail, "ORDER BY "+strings.Join(terms, ", "))
	}
	if p.Limit > 0 {
		tail = append(tail, "LIMIT ?")
		args = append(args, p.Limit)
	}
	return Compiled{Where: where, Tail: strings.Join(tail, " "), Args: args}, nil
}

func (s Schema) cond(c Cond) (string, []any, error) {
	if len(c.Any) > 0 {
		var (
			parts []string
			args  []any
		)
		for _, sub := range c.Any {
			frag, a, err := s.cond(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, frag)
			args = append(args, a...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}
	if r, ok := s.Custom[c.Field]; ok {
		return r(c.Op, c.Value)
	}
	col, ok := s.Columns[c.Field]
	if !ok {
		return "", nil, errors.Wrapf(errors.ErrInvalidQuery, "unsupported query field %q", c.Field)
	}
	return Column(col)(c.Op, c.Value)
}

// Column returns the renderer used for plain columns, exposed so custom
// renderers can delegate to it.
func Column(col string) Renderer {
	return func(op Op, value any) (string, []any, error) {
		switch op {
		case OpEq:
			return col + " = ?", []any{value}, nil
		case OpEqFold:
			return col + " = ? COLLATE NOCASE", []any{value}, nil
		case OpNe:
			return col + " <> ?", []any{value}, nil
		case OpContains:
			return col + ` LIKE ? ESCAPE '\'`, []any{LikePattern(fmt.Sprint(value))}, nil
		case OpIn:
			values, ok := value.([]any)
			if !ok {
				return "", nil, fmt.Errorf("IN on %s requires a list", col)
			}
			if len(values) == 0 {
				return "0=1", nil, nil
			}
			return col + " IN (" + strings.TrimSuffix(strings.Repeat("?,", len(values)), ",") + ")", values, nil
		}
		return "", nil, fmt.Errorf("unsupported operator %s on %s", op, col)
	}
}

// LikePattern escapes s for use as a %s% LIKE pattern with ESCAPE '\'.
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
