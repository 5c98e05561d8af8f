package theme

import (
	"errors"
	"fmt"
	"testing"

	"lumen/pkg/prompttypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func baseTheme() *prompttypes.Theme {
	t := &prompttypes.Theme{
		Name:         "base",
		Capabilities: prompttypes.ThemeColor256 | prompttypes.ThemeUnicode | prompttypes.ThemeRightPrompt,
	}
	t.Colors.Primary = prompttypes.StyleConfig{Foreground: "39", Bold: boolPtr(true)}
	t.Colors.Error = prompttypes.StyleConfig{Foreground: "196"}
	t.Symbols.Prompt = ">"
	t.Symbols.Branch = "@"
	t.Layout.Primary = "${directory} ${symbol} "
	t.Layout.Right = "${time}"
	t.Layout.Multiline = boolPtr(false)
	return t
}

func childTheme(name, parent string) *prompttypes.Theme {
	return &prompttypes.Theme{Name: name, InheritsFrom: parent}
}

func TestStore_RegisterAndFind(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(baseTheme()))

	found, ok := s.Find("base")
	require.True(t, ok)
	assert.Equal(t, "base", found.Name)

	_, ok = s.Find("missing")
	assert.False(t, ok)

	err := s.Register(baseTheme())
	require.Error(t, err)
	assert.True(t, errors.Is(err, prompttypes.ErrDuplicateName))
	assert.Equal(t, 1, s.Len())
}

func TestStore_RegisterValidation(t *testing.T) {
	s := NewStore()

	err := s.Register(nil)
	assert.True(t, errors.Is(err, prompttypes.ErrInvalidParameter))

	err = s.Register(&prompttypes.Theme{})
	assert.True(t, errors.Is(err, prompttypes.ErrInvalidParameter))
}

func TestStore_Inheritance(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(baseTheme()))

	child := childTheme("child", "base")
	child.Colors.Primary = prompttypes.StyleConfig{Foreground: "200"}
	child.Symbols.Prompt = "$"
	child.Capabilities = prompttypes.ThemeNerdFont
	require.NoError(t, s.Register(child))

	resolved, ok := s.Find("child")
	require.True(t, ok)

	// Values set on the child are untouched.
	assert.Equal(t, "200", resolved.Colors.Primary.Foreground)
	assert.Nil(t, resolved.Colors.Primary.Bold, "a set role is not merged field by field")
	assert.Equal(t, "$", resolved.Symbols.Prompt)

	// Unset values come from the parent.
	assert.Equal(t, "196", resolved.Colors.Error.Foreground)
	assert.Equal(t, "@", resolved.Symbols.Branch)
	assert.Equal(t, "${directory} ${symbol} ", resolved.Layout.Primary)
	assert.Equal(t, "${time}", resolved.Layout.Right)
	require.NotNil(t, resolved.Layout.Multiline)
	assert.False(t, *resolved.Layout.Multiline)

	// Capabilities: own flags plus the parent's inheritable ones.
	assert.True(t, resolved.Capabilities.Has(prompttypes.ThemeNerdFont))
	assert.True(t, resolved.Capabilities.Has(prompttypes.ThemeColor256|prompttypes.ThemeUnicode))
	assert.False(t, resolved.Capabilities.Has(prompttypes.ThemeRightPrompt))

	// The registered raw definition keeps its own values only.
	raw, ok := s.Raw("child")
	require.True(t, ok)
	assert.False(t, raw.Colors.Error.IsSet())
}

func TestStore_InheritanceIsTransitive(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(baseTheme()))
	require.NoError(t, s.Register(childTheme("middle", "base")))
	require.NoError(t, s.Register(childTheme("leaf", "middle")))

	leaf, ok := s.Find("leaf")
	require.True(t, ok)
	assert.Equal(t, ">", leaf.Symbols.Prompt)
	assert.Equal(t, "39", leaf.Colors.Primary.Foreground)
}

func TestStore_ResolvedThemeDoesNotAliasParent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(baseTheme()))
	require.NoError(t, s.Register(childTheme("child", "base")))

	child, _ := s.Find("child")
	*child.Colors.Primary.Bold = false

	base, _ := s.Find("base")
	assert.True(t, *base.Colors.Primary.Bold)
}

func TestStore_RegisterMissingParent(t *testing.T) {
	s := NewStore()
	err := s.Register(childTheme("orphan", "nowhere"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, prompttypes.ErrThemeNotFound))
	assert.Equal(t, 0, s.Len())
}

func TestStore_CycleRejection(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *Store) error
	}{
		{
			name: "self inheritance",
			setup: func(s *Store) error {
				return s.Register(childTheme("self", "self"))
			},
		},
		{
			name: "replacement closes a loop",
			setup: func(s *Store) error {
				if err := s.Register(baseTheme()); err != nil {
					return err
				}
				if err := s.Register(childTheme("a", "base")); err != nil {
					return err
				}
				if err := s.Register(childTheme("b", "a")); err != nil {
					return err
				}
				return s.Replace(childTheme("a", "b"))
			},
		},
		{
			name: "chain deeper than the bound",
			setup: func(s *Store) error {
				if err := s.Register(baseTheme()); err != nil {
					return err
				}
				parent := "base"
				for i := 0; i <= MaxInheritanceDepth; i++ {
					name := fmt.Sprintf("level%d", i)
					if err := s.Register(childTheme(name, parent)); err != nil {
						return err
					}
					parent = name
				}
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := tt.setup(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, prompttypes.ErrInheritanceCycle), "got %v", err)
		})
	}
}

func TestStore_CycleRejectionLeavesStoreUnchanged(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(baseTheme()))
	require.NoError(t, s.Register(childTheme("a", "base")))
	require.NoError(t, s.Register(childTheme("b", "a")))
	before := s.Names()
	beforeA, _ := s.Find("a")

	err := s.Replace(childTheme("a", "b"))
	require.Error(t, err)

	assert.Equal(t, before, s.Names())
	afterA, _ := s.Find("a")
	assert.Same(t, beforeA, afterA)
	raw, _ := s.Raw("a")
	assert.Equal(t, "base", raw.InheritsFrom)
}

func TestStore_ReplaceReresolvesDescendants(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(baseTheme()))
	require.NoError(t, s.Register(childTheme("child", "base")))
	require.NoError(t, s.Register(childTheme("grandchild", "child")))

	updated := baseTheme()
	updated.Symbols.Prompt = "%"
	require.NoError(t, s.Replace(updated))

	for _, name := range []string{"base", "child", "grandchild"} {
		theme, ok := s.Find(name)
		require.True(t, ok)
		assert.Equal(t, "%", theme.Symbols.Prompt, name)
	}
}

func TestStore_ReplaceUnknownRegisters(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(baseTheme()))
	_, ok := s.Find("base")
	assert.True(t, ok)
}

func TestStore_ActiveAndSubscribe(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(baseTheme()))
	require.NoError(t, s.Register(childTheme("child", "base")))

	_, ok := s.Active()
	assert.False(t, ok)

	var changes [][2]string
	s.Subscribe(func(previous, current *prompttypes.Theme) {
		name := ""
		if previous != nil {
			name = previous.Name
		}
		changes = append(changes, [2]string{name, current.Name})
	})

	require.NoError(t, s.SetActive("base"))
	require.NoError(t, s.SetActive("child"))

	err := s.SetActive("missing")
	assert.True(t, errors.Is(err, prompttypes.ErrThemeNotFound))

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "child", active.Name)
	assert.Equal(t, [][2]string{{"", "base"}, {"base", "child"}}, changes)

	// Replacing the parent of the active theme re-publishes the active theme.
	updated := baseTheme()
	updated.Symbols.Prompt = "#"
	require.NoError(t, s.Replace(updated))
	active, _ = s.Active()
	assert.Equal(t, "#", active.Symbols.Prompt)
	assert.Len(t, changes, 3)
}

func TestStore_RegisterAllOrdersParentsFirst(t *testing.T) {
	s := NewStore()
	errs := s.RegisterAll([]*prompttypes.Theme{
		childTheme("leaf", "middle"),
		childTheme("middle", "base"),
		baseTheme(),
		childTheme("orphan", "nowhere"),
		childTheme("x", "y"),
		childTheme("y", "x"),
	})

	assert.Equal(t, []string{"base", "leaf", "middle"}, s.Names())
	require.Len(t, errs, 3)

	var notFound, cycles int
	for _, err := range errs {
		switch prompttypes.KindOf(err) {
		case prompttypes.KindThemeNotFound:
			notFound++
		case prompttypes.KindInheritanceCycle:
			cycles++
		}
	}
	assert.Equal(t, 1, notFound)
	assert.Equal(t, 2, cycles)
}

func TestStore_List(t *testing.T) {
	s := NewStore()
	b := baseTheme()
	require.NoError(t, s.Register(childTheme("zeta", "")))
	require.NoError(t, s.Register(b))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "base", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}
