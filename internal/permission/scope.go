package permission

import "github.com/atinyakov/GophBank/internal/models"

// Scope is the category filter applied to a member's visible entries.
// The zero value is the empty category scope: nothing is visible.
type Scope struct {
	all        bool
	categories map[string]struct{}
	ordered    []string
}

// All returns the scope that sees every category.
func All() Scope {
	return Scope{all: true}
}

// Categories returns a scope limited to the given categories.
func Categories(categories ...string) Scope {
	s := Scope{categories: make(map[string]struct{}, len(categories))}
	for _, c := range categories {
		if _, ok := s.categories[c]; ok {
			continue
		}
		s.categories[c] = struct{}{}
		s.ordered = append(s.ordered, c)
	}
	return s
}

// ViewScope derives the view scope of role. viewCategories only matter when
// canViewAll is false.
func ViewScope(role *models.Role) Scope {
	if role == nil {
		return Categories()
	}
	if role.Permissions.CanViewAll {
		return All()
	}
	return Categories(role.Permissions.ViewCategories...)
}

// IsAll reports whether the scope sees every category.
func (s Scope) IsAll() bool {
	return s.all
}

// IsEmpty reports whether the scope sees nothing.
func (s Scope) IsEmpty() bool {
	return !s.all && len(s.categories) == 0
}

// Allows reports whether entries of category are visible.
func (s Scope) Allows(category string) bool {
	if s.all {
		return true
	}
	_, ok := s.categories[category]
	return ok
}

// CategoryList returns the allowed categories in first-seen order, or nil
// for the All scope.
func (s Scope) CategoryList() []string {
	if s.all {
		return nil
	}
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Filter keeps the entries visible under s, preserving order.
func (s Scope) Filter(entries []models.Password) []models.Password {
	if s.all {
		return entries
	}
	out := make([]models.Password, 0, len(entries))
	for _, e := range entries {
		if s.Allows(e.Category) {
			out = append(out, e)
		}
	}
	return out
}
