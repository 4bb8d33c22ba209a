// Package querybuilder turns widget options into SQL.
//
// Builders never concatenate SQL directly: they produce a small query tree
// (Select, Union, Subquery) which Render turns into text in one place.
package querybuilder

import (
	"regexp"
	"strings"
)

// Node is a renderable query.
type Node interface {
	render(b *strings.Builder)
}

// Source is something a SELECT can read from.
type Source interface {
	renderSource(b *strings.Builder)
}

// Projection is one item of a select list. A quoted alias renders as
// AS "alias", a bare one as "as alias".
type Projection struct {
	Expr        string
	Alias       string
	QuotedAlias bool
}

// Select is a single SELECT statement.
type Select struct {
	Projections []Projection
	From        Source
	GroupBy     []string
	OrderBy     []string
}

// Union joins selects with UNION ALL.
type Union struct {
	Parts []*Select
}

// TableRef is a schema-qualified table name used verbatim in FROM.
type TableRef string

// Subquery is a parenthesized query with an alias.
type Subquery struct {
	Query Node
	Alias string
}

// Render returns the SQL text of n.
func Render(n Node) string {
	var b strings.Builder
	n.render(&b)
	return b.String()
}

func (s *Select) render(b *strings.Builder) {
	b.WriteString("SELECT ")
	for i, p := range s.Projections {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Expr)
		if p.Alias == "" {
			continue
		}
		if p.QuotedAlias {
			b.WriteString(" AS ")
			b.WriteString(QuoteIdent(p.Alias))
		} else {
			b.WriteString(" as ")
			b.WriteString(p.Alias)
		}
	}
	if s.From != nil {
		b.WriteString(" FROM ")
		s.From.renderSource(b)
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(s.GroupBy, ", "))
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.OrderBy, ", "))
	}
}

func (u *Union) render(b *strings.Builder) {
	for i, p := range u.Parts {
		if i > 0 {
			b.WriteString(" UNION ALL ")
		}
		p.render(b)
	}
}

func (t TableRef) renderSource(b *strings.Builder) { b.WriteString(string(t)) }

func (s Subquery) renderSource(b *strings.Builder) {
	b.WriteString("(")
	s.Query.render(b)
	b.WriteString(") AS ")
	b.WriteString(s.Alias)
}

// QuoteIdent double-quotes an identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var tableID = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidTable reports whether id is a plain "table" or "schema.table" name.
func ValidTable(id string) bool { return tableID.MatchString(id) }

var (
	qualifiedBare   = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*\.([A-Za-z_][A-Za-z0-9_]*)\b`)
	qualifiedQuoted = regexp.MustCompile(`"[^"]+"\."[^"]+"\."([^"]+)"`)
)

// Sanitize rewrites schema.table.column references to a bare "column".
// Two tables sharing a column name collapse to the same identifier; callers
// must not rely on the qualification surviving.
func Sanitize(expr string) string {
	out := qualifiedQuoted.ReplaceAllString(expr, `"$1"`)
	return qualifiedBare.ReplaceAllString(out, `"$1"`)
}
