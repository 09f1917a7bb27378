// Package dropdown implements searchable single-choice menus.
package dropdown

import (
	"fmt"
	"strings"
	"time"
)

// FocusDelay is how long after opening a menu its search field should be focused.
const FocusDelay = 100 * time.Millisecond

// Option is a selectable entry of a Group.
type Option struct {
	Value string
	Name  string
	Type  string // optional label shown next to the name
}

// Span is a highlighted byte range [Start, End) of a string.
type Span struct {
	Start int
	End   int
}

// Match is an option that survived a search, with the ranges of its
// name and type that matched the search term.
type Match struct {
	Option
	Index     int
	NameSpans []Span
	TypeSpans []Span
}

// Group is a labeled menu with exactly one selected option.
type Group struct {
	Name string

	options  []Option
	selected int
	open     bool
	search   string
}

// NewGroup returns a closed group with its first option selected.
func NewGroup(name string, options ...Option) (*Group, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("dropdown %q has no options", name)
	}
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if seen[o.Value] {
			return nil, fmt.Errorf("dropdown %q has duplicate option %q", name, o.Value)
		}
		seen[o.Value] = true
	}
	return &Group{
		Name:    name,
		options: append([]Option(nil), options...),
	}, nil
}

func (g *Group) Options() []Option { return append([]Option(nil), g.options...) }
func (g *Group) IsOpen() bool      { return g.open }
func (g *Group) Search() string    { return g.search }

// Selected returns the option currently shown in the group header.
func (g *Group) Selected() Option { return g.options[g.selected] }

// Value is the value of the selected option.
func (g *Group) Value() string { return g.Selected().Value }

// SetSearch stores the search term typed into the open menu.
func (g *Group) SetSearch(term string) { g.search = term }

// Filter returns the options whose name or type contains term, ignoring case.
// An empty term matches everything.
func (g *Group) Filter(term string) []Match {
	needle := strings.ToLower(term)
	var matches []Match
	for i, o := range g.options {
		nameSpans := find(o.Name, needle)
		typeSpans := find(o.Type, needle)
		if needle != "" && nameSpans == nil && typeSpans == nil {
			continue
		}
		matches = append(matches, Match{
			Option:    o,
			Index:     i,
			NameSpans: nameSpans,
			TypeSpans: typeSpans,
		})
	}
	return matches
}

// Visible is Filter applied to the stored search term.
func (g *Group) Visible() []Match { return g.Filter(g.search) }

// NoResults is the placeholder shown when the stored search matches nothing.
// It returns an empty string when at least one option is visible.
func (g *Group) NoResults() string {
	if len(g.Visible()) > 0 {
		return ""
	}
	return `No results for "` + g.search + `"`
}

func (g *Group) sel(value string) bool {
	for i, o := range g.options {
		if o.Value == value {
			g.selected = i
			g.open = false
			g.search = ""
			return true
		}
	}
	return false
}

// find returns the non-overlapping ranges of s that equal needle ignoring case.
func find(s, needle string) []Span {
	if needle == "" || s == "" {
		return nil
	}
	hay := strings.ToLower(s)
	// lower-casing can change byte lengths for some runes; give up on spans then
	if len(hay) != len(s) {
		if strings.Contains(hay, needle) {
			return []Span{{0, len(s)}}
		}
		return nil
	}
	var spans []Span
	for off := 0; ; {
		i := strings.Index(hay[off:], needle)
		if i < 0 {
			break
		}
		start := off + i
		spans = append(spans, Span{start, start + len(needle)})
		off = start + len(needle)
	}
	return spans
}
