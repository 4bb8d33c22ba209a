package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// NormalizeJSON formats and sorts keys so that JSON diffs are stable.
func NormalizeJSON(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	v = sortKeys(v)
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
	return strings.TrimRight(buf.String(), "\n")
}

func sortKeys(v any) any {
	switch m := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		res := make(map[string]any, len(m))
		for _, k := range keys {
			res[k] = sortKeys(m[k])
		}
		return res
	case []any:
		for i := range m {
			m[i] = sortKeys(m[i])
		}
		return m
	default:
		return v
	}
}

// ConfigDiff returns a unified diff of two widget configs and counts of
// added and removed key lines.
func ConfigDiff(beforeJSON, afterJSON []byte) (unified string, added, removed int) {
	s := unified2(NormalizeJSON(beforeJSON), NormalizeJSON(afterJSON))
	added, removed = countChanges(s, func(line string) bool { return strings.Contains(line, "\":") })
	return s, added, removed
}

var clause = regexp.MustCompile(`(?i)\s+(FROM|WHERE|GROUP BY|ORDER BY|UNION ALL|LIMIT)\s+`)

// SplitQuery puts each top-level clause of a generated query on its own
// line so diffs point at the clause that changed.
func SplitQuery(q string) string {
	return strings.TrimSpace(clause.ReplaceAllString(q, "\n$1 "))
}

// QueryDiff returns a unified diff of two generated queries.
func QueryDiff(before, after string) (unified string, added, removed int) {
	s := unified2(SplitQuery(before), SplitQuery(after))
	added, removed = countChanges(s, func(string) bool { return true })
	return s, added, removed
}

func unified2(a, b string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a + "\n"),
		B:        difflib.SplitLines(b + "\n"),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	}
	s, _ := difflib.GetUnifiedDiffString(diff)
	return s
}

func countChanges(unified string, counts func(string) bool) (add, del int) {
	sc := bufio.NewScanner(strings.NewReader(unified))
	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 {
			continue
		}
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") && counts(line) {
			add++
		} else if strings.HasPrefix(line, "-") && counts(line) {
			del++
		}
	}
	return
}
