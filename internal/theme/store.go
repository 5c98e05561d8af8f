// Package theme manages the set of registered prompt themes, their inheritance
// and the active selection.
//
// Themes are resolved once, when they are registered: every unset color role, symbol
// and layout field is copied from the already-resolved parent. Lookups never walk the
// inheritance chain.
package theme

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"lumen/pkg/prompttypes"
)

// MaxInheritanceDepth bounds the parent chain walked during cycle detection.
const MaxInheritanceDepth = 10

// ChangeFunc is called after the active theme changes. previous is nil on the first activation.
type ChangeFunc func(previous, current *prompttypes.Theme)

type entry struct {
	raw      *prompttypes.Theme
	resolved *prompttypes.Theme
}

// Store is the registry of themes. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	activeName  string
	active      atomic.Pointer[prompttypes.Theme]
	subscribers []ChangeFunc
}

// NewStore creates an empty theme store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// Register adds a theme, resolving its inheritance first.
// The store is unchanged when an error is returned.
func (s *Store) Register(theme *prompttypes.Theme) error {
	if err := validate("register", theme); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[theme.Name]; exists {
		return prompttypes.NewError(prompttypes.KindDuplicateName, "register", theme.Name, nil)
	}

	raw := theme.Clone()
	resolved, err := s.resolveLocked(raw, s.entries)
	if err != nil {
		return err
	}

	s.entries[raw.Name] = &entry{raw: raw, resolved: resolved}
	return nil
}

// RegisterAll registers a batch of themes, parents before children, so a batch
// may list themes in any order. It returns the errors of the themes that were rejected.
func (s *Store) RegisterAll(themes []*prompttypes.Theme) []error {
	var errs []error
	pending := make([]*prompttypes.Theme, 0, len(themes))
	for _, t := range themes {
		if t != nil {
			pending = append(pending, t)
		}
	}

	for len(pending) > 0 {
		var next []*prompttypes.Theme
		progressed := false
		for _, t := range pending {
			if t.InheritsFrom != "" && !s.has(t.InheritsFrom) && inBatch(pending, t.InheritsFrom) {
				next = append(next, t)
				continue
			}
			if err := s.Register(t); err != nil {
				errs = append(errs, err)
			}
			progressed = true
		}
		if !progressed {
			// Remaining themes only depend on each other: a cycle within the batch.
			for _, t := range next {
				errs = append(errs, prompttypes.NewError(prompttypes.KindInheritanceCycle, "register", t.Name,
					fmt.Errorf("parent %q is part of an unresolved chain", t.InheritsFrom)))
			}
			break
		}
		pending = next
	}
	return errs
}

// Replace swaps the definition of a registered theme, re-resolving it and every theme
// that inherits from it. Unknown names are registered. Nothing changes on error.
func (s *Store) Replace(theme *prompttypes.Theme) error {
	if err := validate("replace", theme); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.entries[theme.Name]; !exists {
		s.mu.Unlock()
		return s.Register(theme)
	}

	staged := make(map[string]*entry, len(s.entries))
	for name, e := range s.entries {
		staged[name] = e
	}

	raw := theme.Clone()
	resolved, err := s.resolveLocked(raw, staged)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	staged[raw.Name] = &entry{raw: raw, resolved: resolved}

	changed := map[string]bool{raw.Name: true}
	for _, name := range descendants(staged, raw.Name) {
		e := staged[name]
		// A longer parent chain can push a descendant past the depth bound.
		if err := checkChain(name, e.raw.InheritsFrom, staged); err != nil {
			s.mu.Unlock()
			return err
		}
		parent := staged[e.raw.InheritsFrom]
		staged[name] = &entry{raw: e.raw, resolved: inherit(e.raw, parent.resolved)}
		changed[name] = true
	}

	s.entries = staged

	var old, updated *prompttypes.Theme
	var notify []ChangeFunc
	if s.activeName != "" && changed[s.activeName] {
		updated = staged[s.activeName].resolved
		old = s.active.Swap(updated)
		notify = append(notify, s.subscribers...)
	}
	s.mu.Unlock()

	for _, fn := range notify {
		fn(old, updated)
	}
	return nil
}

// Find returns the resolved theme registered under name. The returned theme is shared
// and must not be modified.
func (s *Store) Find(name string) (*prompttypes.Theme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return nil, false
	}
	return e.resolved, true
}

// Raw returns the theme as it was registered, before inheritance was applied.
func (s *Store) Raw(name string) (*prompttypes.Theme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return nil, false
	}
	return e.raw.Clone(), true
}

// List returns every resolved theme sorted by name.
func (s *Store) List() []*prompttypes.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()

	themes := make([]*prompttypes.Theme, 0, len(s.entries))
	for _, e := range s.entries {
		themes = append(themes, e.resolved)
	}
	sort.Slice(themes, func(i, j int) bool {
		return themes[i].Name < themes[j].Name
	})
	return themes
}

// Names returns the registered theme names in sorted order.
func (s *Store) Names() []string {
	themes := s.List()
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of registered themes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetActive makes name the active theme and notifies subscribers.
func (s *Store) SetActive(name string) error {
	s.mu.Lock()
	e, exists := s.entries[name]
	if !exists {
		s.mu.Unlock()
		return prompttypes.NewError(prompttypes.KindThemeNotFound, "set active", name, nil)
	}
	s.activeName = name
	old := s.active.Swap(e.resolved)
	notify := append([]ChangeFunc(nil), s.subscribers...)
	s.mu.Unlock()

	for _, fn := range notify {
		fn(old, e.resolved)
	}
	return nil
}

// Active returns the active theme. It never blocks on writers.
func (s *Store) Active() (*prompttypes.Theme, bool) {
	t := s.active.Load()
	return t, t != nil
}

// Subscribe registers fn to be called after every active theme change.
func (s *Store) Subscribe(fn ChangeFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.entries[name]
	return exists
}

// resolveLocked checks the parent chain of raw against entries and returns the
// resolved theme. Must be called with mu held.
func (s *Store) resolveLocked(raw *prompttypes.Theme, entries map[string]*entry) (*prompttypes.Theme, error) {
	if raw.InheritsFrom == "" {
		return raw.Clone(), nil
	}
	if err := checkChain(raw.Name, raw.InheritsFrom, entries); err != nil {
		return nil, err
	}
	return inherit(raw, entries[raw.InheritsFrom].resolved), nil
}

// checkChain walks the parent chain starting at parent. Revisiting name, or any theme,
// or walking past MaxInheritanceDepth is a cycle.
func checkChain(name, parent string, entries map[string]*entry) error {
	if parent == name {
		return prompttypes.NewError(prompttypes.KindInheritanceCycle, "resolve", name,
			fmt.Errorf("theme inherits from itself"))
	}

	seen := map[string]bool{name: true}
	current := parent
	for depth := 0; current != ""; depth++ {
		if depth >= MaxInheritanceDepth {
			return prompttypes.NewError(prompttypes.KindInheritanceCycle, "resolve", name,
				fmt.Errorf("inheritance chain deeper than %d", MaxInheritanceDepth))
		}
		if seen[current] {
			return prompttypes.NewError(prompttypes.KindInheritanceCycle, "resolve", name,
				fmt.Errorf("chain revisits %q", current))
		}
		seen[current] = true

		e, exists := entries[current]
		if !exists {
			return prompttypes.NewError(prompttypes.KindThemeNotFound, "resolve", current,
				fmt.Errorf("parent of %q", name))
		}
		current = e.raw.InheritsFrom
	}
	return nil
}

// inherit returns a copy of raw with every unset field taken from the resolved parent.
func inherit(raw, parent *prompttypes.Theme) *prompttypes.Theme {
	t := raw.Clone()
	if parent == nil {
		return t
	}
	p := parent.Clone()

	parentRoles := p.Colors.Roles()
	for role, style := range t.Colors.Roles() {
		if !style.IsSet() {
			*style = *parentRoles[role]
		}
	}

	parentSymbols := p.Symbols.Fields()
	for name, symbol := range t.Symbols.Fields() {
		if *symbol == "" {
			*symbol = *parentSymbols[name]
		}
	}

	if t.Layout.Primary == "" {
		t.Layout.Primary = p.Layout.Primary
	}
	if t.Layout.Right == "" {
		t.Layout.Right = p.Layout.Right
	}
	if t.Layout.Continuation == "" {
		t.Layout.Continuation = p.Layout.Continuation
	}
	if t.Layout.Transient == "" {
		t.Layout.Transient = p.Layout.Transient
	}
	if t.Layout.Multiline == nil {
		t.Layout.Multiline = p.Layout.Multiline
	}
	if t.Layout.AddNewline == nil {
		t.Layout.AddNewline = p.Layout.AddNewline
	}

	t.Capabilities |= p.Capabilities & prompttypes.InheritableCapabilities
	return t
}

// descendants lists every theme inheriting, directly or not, from root.
// Parents always precede their children in the result.
func descendants(entries map[string]*entry, root string) []string {
	children := make(map[string][]string)
	for name, e := range entries {
		if e.raw.InheritsFrom != "" {
			children[e.raw.InheritsFrom] = append(children[e.raw.InheritsFrom], name)
		}
	}
	for _, names := range children {
		sort.Strings(names)
	}

	var order []string
	visited := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if visited[child] {
				continue
			}
			visited[child] = true
			order = append(order, child)
			queue = append(queue, child)
		}
	}
	return order
}

func inBatch(themes []*prompttypes.Theme, name string) bool {
	for _, t := range themes {
		if t.Name == name {
			return true
		}
	}
	return false
}

func validate(op string, theme *prompttypes.Theme) error {
	if theme == nil {
		return prompttypes.NewError(prompttypes.KindInvalidParameter, op, "", fmt.Errorf("theme is nil"))
	}
	if theme.Name == "" {
		return prompttypes.NewError(prompttypes.KindInvalidParameter, op, "", fmt.Errorf("theme name is empty"))
	}
	return nil
}
