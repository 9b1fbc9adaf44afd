package models

import "time"

// DefaultBankIcon is used when a bank is created without an icon.
const DefaultBankIcon = "🏦"

// Member is the bank-side view of a membership.
type Member struct {
	UserID string `json:"userId"`
	RoleID string `json:"roleId"`
}

// Bank is a shared vault grouping members, roles and password entries.
type Bank struct {
	// ID is the unique identifier for the bank.
	ID string `json:"id"`
	// Name is the display name; never empty.
	Name string `json:"name"`
	// Description is free text shown next to the name.
	Description string `json:"description"`
	// Icon is a short emoji or glyph.
	Icon string `json:"icon"`
	// OwnerID is the creating user. It never changes.
	OwnerID string `json:"ownerId"`
	// Members lists memberships in join order, unique per user.
	Members []Member `json:"members"`
	// Roles lists role identifiers in creation order.
	Roles []string `json:"roles"`
	// Deleted marks a soft-deleted bank.
	Deleted bool `json:"deleted"`
	// DeletedAt is set while Deleted is true.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	// Version is bumped on every structural write and used for optimistic concurrency.
	Version int64 `json:"version"`
	// CreatedAt is the creation time.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Member returns the membership of userID, if any.
func (b *Bank) Member(userID string) (Member, bool) {
	for _, m := range b.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// HasRole reports whether roleID is one of the bank's roles.
func (b *Bank) HasRole(roleID string) bool {
	for _, id := range b.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// BankInput holds the fields accepted when creating a bank.
type BankInput struct {
	Name        string
	Description string
	Icon        string
}

// BankSettings holds a partial settings update. Empty fields are left unchanged.
type BankSettings struct {
	Name        string
	Description string
	Icon        string
}

// MemberDetails is a membership resolved to the user and role records.
type MemberDetails struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     *Role  `json:"role"`
}

// BankDetails is a bank with its members and roles resolved.
type BankDetails struct {
	Bank
	Members []MemberDetails `json:"members"`
	Roles   []Role          `json:"roles"`
}

// ClearResult describes one clear-all operation on a bank.
type ClearResult struct {
	// ClearedAt is the shared deletion stamp of the cleared batch.
	ClearedAt time.Time `json:"clearedAt"`
	// Count is the number of entries cleared.
	Count int64 `json:"count"`
}
