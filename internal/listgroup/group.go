// Package listgroup infers templates from ClickUp list names.
//
// Lists that were created from the same template usually share a leading
// keyword ("Onboarding Acme", "Onboarding Beta"). GroupListsByName clusters
// them so their fields can be mapped once per group.
package listgroup

import "strings"

// List is an external list reference.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListGroup is the set of lists sharing a group key.
type ListGroup struct {
	TypeName     string `json:"typeName"`
	Lists        []List `json:"lists"`
	Count        int    `json:"count"`
	SampleListID string `json:"sampleListId"`
}

// StopWords are dropped before choosing a key.
var StopWords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "los": {}, "las": {}, "del": {}, "y": {}, "e": {},
	"o": {}, "en": {}, "un": {}, "una": {}, "para": {}, "por": {}, "con": {}, "al": {},
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "for": {}, "in": {},
	"on": {}, "to": {}, "with": {},
}

// GenericKeys need a second keyword to identify a group.
var GenericKeys = map[string]struct{}{
	"project": {}, "report": {}, "informe": {}, "reporte": {},
}

var separators = strings.NewReplacer("-", " ", "_", " ", "(", " ", ")", " ")

// Keywords returns the significant words of a list name in order.
func Keywords(name string) []string {
	words := strings.Split(separators.Replace(strings.ToLower(name)), " ")
	out := words[:0]
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, stop := StopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Key returns the group key of a list name and false when the name has no
// keywords.
func Key(name string) (string, bool) {
	kw := Keywords(name)
	if len(kw) == 0 {
		return "", false
	}
	if _, generic := GenericKeys[kw[0]]; generic && len(kw) > 1 {
		return kw[0] + " " + kw[1], true
	}
	return kw[0], true
}

// GroupListsByName groups lists by key. Groups and the lists within them
// keep the order in which they first appear; lists without keywords are
// skipped.
func GroupListsByName(lists []List) []ListGroup {
	var groups []ListGroup
	index := map[string]int{}
	for _, l := range lists {
		key, ok := Key(l.Name)
		if !ok {
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, ListGroup{TypeName: key, SampleListID: l.ID})
		}
		groups[i].Lists = append(groups[i].Lists, l)
		groups[i].Count++
	}
	return groups
}

// Find returns the group called typeName.
func Find(groups []ListGroup, typeName string) (ListGroup, bool) {
	for _, g := range groups {
		if g.TypeName == typeName {
			return g, true
		}
	}
	return ListGroup{}, false
}
