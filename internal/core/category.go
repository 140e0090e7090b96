package core

import "strings"

// hierarchySep separates group and subcategory in hierarchical labels.
const hierarchySep = " > "

// Category is a parsed category label. Labels come in two spellings: flat
// ("Ropa") and hierarchical ("Compras > Ropa"). Group is empty for flat
// labels. Parsing once here keeps the rest of the engine free of string
// splitting.
type Category struct {
	Group string
	Name  string
}

// ParseCategory splits a raw label into its group and subcategory parts.
// Labels with more than one separator keep everything after the first
// separator as the subcategory, matching how the taxonomy is stored.
func ParseCategory(label string) Category {
	label = strings.TrimSpace(label)
	group, sub, found := strings.Cut(label, hierarchySep)
	if !found {
		return Category{Name: label}
	}
	return Category{Group: strings.TrimSpace(group), Name: strings.TrimSpace(sub)}
}

// IsHierarchical reports whether the label carries a group prefix.
func (c Category) IsHierarchical() bool {
	return c.Group != ""
}

// String renders the canonical spelling of the label.
func (c Category) String() string {
	if c.Group == "" {
		return c.Name
	}
	return c.Group + hierarchySep + c.Name
}

// Equivalent reports whether two labels denote the same logical category:
// identical spellings, or a flat label matching the subcategory of a
// hierarchical one. Two distinct hierarchical labels are never equivalent,
// even when their subcategory text coincides.
func (c Category) Equivalent(o Category) bool {
	if c == o {
		return true
	}
	if c.IsHierarchical() && o.IsHierarchical() {
		return false
	}
	if c.IsHierarchical() {
		return c.Name == o.Name
	}
	if o.IsHierarchical() {
		return o.Name == c.Name
	}
	return false
}

// PreferCanonical picks the canonical spelling for two equivalent labels:
// the hierarchical one wins over the flat one.
func PreferCanonical(a, b Category) Category {
	if b.IsHierarchical() && !a.IsHierarchical() {
		return b
	}
	return a
}

// IsParentOf reports whether c is the flat parent of o, i.e. c is flat and
// o is hierarchical with c's name as its group.
func (c Category) IsParentOf(o Category) bool {
	return !c.IsHierarchical() && o.IsHierarchical() && o.Group == c.Name
}
