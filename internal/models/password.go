package models

import "time"

// DefaultCategory is assigned to entries created without a category.
const DefaultCategory = "General"

// Password is one stored credential inside a bank.
type Password struct {
	// ID is the unique identifier for the entry.
	ID string `json:"id"`
	// Title names the service the credential belongs to.
	Title string `json:"title"`
	// Username is the stored login.
	Username string `json:"username"`
	// Password is the stored secret value, kept as plain text.
	Password string `json:"password"`
	// Category scopes visibility through role view categories.
	Category string `json:"category"`
	// BankID is the owning bank.
	BankID string `json:"bankId"`
	// CreatedBy is the user that created the entry.
	CreatedBy string `json:"createdBy"`
	// Notes holds free text.
	Notes string `json:"notes"`
	// Deleted marks a soft-deleted entry.
	Deleted bool `json:"deleted,omitempty"`
	// DeletedAt is set while Deleted is true.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// PasswordInput holds the fields accepted when creating an entry.
type PasswordInput struct {
	Title    string
	Username string
	Password string
	Category string
	Notes    string
}

// PasswordUpdate is a partial update; nil fields are left unchanged.
type PasswordUpdate struct {
	Title    *string
	Username *string
	Password *string
	Category *string
	Notes    *string
}

// Apply copies the set fields of u onto p.
func (u PasswordUpdate) Apply(p *Password) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.Password != nil {
		p.Password = *u.Password
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
}
