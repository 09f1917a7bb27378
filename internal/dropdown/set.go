package dropdown

import "fmt"

// Set holds every dropdown group of a screen. At most one group is open.
type Set struct {
	groups []*Group
}

// Register adds g to the set. A group with the same name is replaced in
// place, so initializing a screen twice never duplicates a menu.
func (s *Set) Register(g *Group) {
	for i, existing := range s.groups {
		if existing.Name == g.Name {
			s.groups[i] = g
			return
		}
	}
	s.groups = append(s.groups, g)
}

// Groups returns the registered groups in registration order.
func (s *Set) Groups() []*Group { return append([]*Group(nil), s.groups...) }

// Get returns the named group or nil.
func (s *Set) Get(name string) *Group {
	for _, g := range s.groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Active returns the open group or nil.
func (s *Set) Active() *Group {
	for _, g := range s.groups {
		if g.open {
			return g
		}
	}
	return nil
}

// Toggle opens the named group, closing every other one, or closes it if it
// was already open. It reports whether the group ended up open; callers
// should then focus its search field after FocusDelay.
func (s *Set) Toggle(name string) (bool, error) {
	g := s.Get(name)
	if g == nil {
		return false, fmt.Errorf("unknown dropdown %q", name)
	}
	if g.open {
		g.open = false
		return false, nil
	}
	s.CloseAll()
	g.open = true
	g.search = ""
	return true, nil
}

// Select makes value the selected option of the named group and closes it.
func (s *Set) Select(name, value string) error {
	g := s.Get(name)
	if g == nil {
		return fmt.Errorf("unknown dropdown %q", name)
	}
	if !g.sel(value) {
		return fmt.Errorf("dropdown %q has no option %q", name, value)
	}
	return nil
}

// CloseAll closes every group. It is the handler for interaction outside
// all menus.
func (s *Set) CloseAll() {
	for _, g := range s.groups {
		g.open = false
		g.search = ""
	}
}

// ValueOr returns the selected value of the named group, or fallback when
// the group is missing or its value is empty.
func (s *Set) ValueOr(name, fallback string) string {
	if g := s.Get(name); g != nil && g.Value() != "" {
		return g.Value()
	}
	return fallback
}
