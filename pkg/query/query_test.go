package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/soar/pkg/errors"
)

var testSchema = Schema{
	Columns: map[Field]string{
		FieldPkgName: "p.pkg_name",
		FieldPkgID:   "p.pkg_id",
		FieldVersion: "p.version",
		FieldPinned:  "p.pinned",
	},
	Custom: map[Field]Renderer{
		FieldProvides: func(op Op, v any) (string, []any, error) {
			return "EXISTS (SELECT 1 FROM provides pr WHERE pr.package_id = p.id AND pr.name = ? COLLATE NOCASE)", []any{v}, nil
		},
	},
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name      string
		predicate Predicate
		where     string
		tail      string
		args      []any
	}{
		{
			name:  "empty matches all",
			where: "1=1",
		},
		{
			name:      "name or provides",
			predicate: New(Or(EqFold(FieldPkgName, "vim"), Eq(FieldProvides, "vim")), Eq(FieldPinned, false)),
			where:     "(p.pkg_name = ? COLLATE NOCASE OR EXISTS (SELECT 1 FROM provides pr WHERE pr.package_id = p.id AND pr.name = ? COLLATE NOCASE)) AND p.pinned = ?",
			args:      []any{"vim", "vim", false},
		},
		{
			name:      "in and order with limit",
			predicate: New(In(FieldPkgID, "a", "b")).OrderBy(FieldVersion, true).WithLimit(5),
			where:     "p.pkg_id IN (?,?)",
			tail:      "ORDER BY p.version DESC LIMIT ?",
			args:      []any{"a", "b", 5},
		},
		{
			name:      "empty in matches nothing",
			predicate: New(In(FieldPkgID)),
			where:     "0=1",
		},
		{
			name:      "contains escapes wildcards",
			predicate: New(Contains(FieldPkgName, "100%_x")),
			where:     `p.pkg_name LIKE ? ESCAPE '\'`,
			args:      []any{`%100\%\_x%`},
		},
		{
			name:      "not equal",
			predicate: New(Ne(FieldPkgID, "x")),
			where:     "p.pkg_id <> ?",
			args:      []any{"x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := testSchema.Compile(tt.predicate)
			require.NoError(t, err)
			assert.Equal(t, tt.where, c.Where)
			assert.Equal(t, tt.tail, c.Tail)
			assert.Equal(t, tt.args, c.Args)
		})
	}
}

func TestCompile_RejectsUnknownFields(t *testing.T) {
	_, err := testSchema.Compile(New(Eq(FieldProfile, "x")))
	assert.ErrorIs(t, err, errors.ErrInvalidQuery)

	_, err = testSchema.Compile(New().OrderBy(FieldProvides, false))
	assert.ErrorIs(t, err, errors.ErrInvalidQuery)
}

func TestPredicateHelpers(t *testing.T) {
	base := New(Eq(FieldPkgName, "a"))
	extended := base.Where(Eq(FieldPkgID, "b"))
	assert.Len(t, base.Conds, 1, "Where must not mutate the receiver")
	assert.Len(t, extended.Conds, 2)

	v, ok := extended.Lookup(FieldPkgID)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	stripped := extended.Without(FieldPkgID)
	_, ok = stripped.Lookup(FieldPkgID)
	assert.False(t, ok)
	assert.Len(t, stripped.Conds, 1)
}
