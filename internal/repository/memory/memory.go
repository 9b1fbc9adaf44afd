// Package memory provides an in-process implementation of every GophBank
// repository. It backs the server when no database DSN is configured and
// the service tests.
//
// Each operation runs under one mutex, so multi-record changes such as role
// deletion are atomic. Membership is stored once; Bank.Members and
// User.BankMemberships are both derived from it.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/atinyakov/GophBank/internal/models"
)

type membership struct {
	bankID string
	userID string
	roleID string
}

// Store is a mutex-guarded in-memory data store.
type Store struct {
	mu sync.RWMutex

	users     map[string]models.User
	banks     map[string]models.Bank
	roles     map[string]models.Role
	passwords map[string]models.Password

	// members, roleOrder and passwordOrder keep insertion order.
	members       []membership
	roleOrder     []string
	passwordOrder []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:     make(map[string]models.User),
		banks:     make(map[string]models.Bank),
		roles:     make(map[string]models.Role),
		passwords: make(map[string]models.Password),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// CreateUser stores u. Username and email are unique.
func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return models.ErrDuplicate
	}
	if s.clashes(u) {
		return models.ErrDuplicate
	}
	stored := *u
	stored.BankMemberships = nil
	s.users[u.ID] = stored
	return nil
}

// clashes reports whether another user holds u's username or email.
func (s *Store) clashes(u *models.User) bool {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username || other.Email == u.Email {
			return true
		}
	}
	return false
}

// GetUserByID returns the user with id.
func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

// GetUserByEmail returns the user registered under email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email })
}

// GetUserByUsername returns the user named username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

func (s *Store) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

// GetUsersByIDs returns the known users among ids.
func (s *Store) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// UpdateUserProfile stores the username, email and update time of u.
func (s *Store) UpdateUserProfile(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[u.ID]
	if !ok {
		return models.ErrNotFound
	}
	if s.clashes(u) {
		return models.ErrDuplicate
	}
	stored.Username = u.Username
	stored.Email = u.Email
	stored.UpdatedAt = u.UpdatedAt
	s.users[u.ID] = stored
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	stored.PasswordHash = hash
	stored.UpdatedAt = at
	s.users[userID] = stored
	return nil
}

// ListMemberships returns the memberships of userID in join order.
func (s *Store) ListMemberships(_ context.Context, userID string) ([]models.BankMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.BankMembership{}
	for _, m := range s.members {
		if m.userID == userID {
			out = append(out, models.BankMembership{BankID: m.bankID, RoleID: m.roleID})
		}
	}
	return out, nil
}

// CreateBank stores bank, its first role and the owner membership.
func (s *Store) CreateBank(_ context.Context, bank *models.Bank, topRole *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banks[bank.ID]; ok {
		return models.ErrDuplicate
	}
	if _, ok := s.roles[topRole.ID]; ok {
		return models.ErrDuplicate
	}

	stored := *bank
	stored.Members, stored.Roles = nil, nil
	s.banks[bank.ID] = stored
	s.putRole(*topRole)
	s.members = append(s.members, membership{bankID: bank.ID, userID: bank.OwnerID, roleID: topRole.ID})
	return nil
}

// GetBank returns the bank with id, deleted or not.
func (s *Store) GetBank(_ context.Context, bankID string) (*models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.assemble(bankID)
	if !ok {
		return nil, models.ErrNotFound
	}
	return b, nil
}

// ListBanksForUser returns userID's banks in membership order.
func (s *Store) ListBanksForUser(_ context.Context, userID string) ([]models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Bank{}
	for _, m := range s.members {
		if m.userID != userID {
			continue
		}
		if b, ok := s.assemble(m.bankID); ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

// assemble builds the bank view with derived members and role ids.
func (s *Store) assemble(bankID string) (*models.Bank, bool) {
	stored, ok := s.banks[bankID]
	if !ok {
		return nil, false
	}
	b := stored
	b.Members = []models.Member{}
	for _, m := range s.members {
		if m.bankID == bankID {
			b.Members = append(b.Members, models.Member{UserID: m.userID, RoleID: m.roleID})
		}
	}
	b.Roles = []string{}
	for _, id := range s.roleOrder {
		if s.roles[id].BankID == bankID {
			b.Roles = append(b.Roles, id)
		}
	}
	if stored.DeletedAt != nil {
		at := *stored.DeletedAt
		b.DeletedAt = &at
	}
	return &b, true
}

// UpdateBank stores the settings and soft-delete state of bank.
func (s *Store) UpdateBank(_ context.Context, bank *models.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.checkVersion(bank.ID, bank.Version)
	if err != nil {
		return err
	}
	stored.Name = bank.Name
	stored.Description = bank.Description
	stored.Icon = bank.Icon
	stored.Deleted = bank.Deleted
	stored.DeletedAt = nil
	if bank.DeletedAt != nil {
		at := *bank.DeletedAt
		stored.DeletedAt = &at
	}
	stored.UpdatedAt = bank.UpdatedAt
	bank.Version = s.bump(stored)
	return nil
}

// AddMember appends a membership to the bank.
func (s *Store) AddMember(_ context.Context, bankID string, version int64, m models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.checkVersion(bankID, version)
	if err != nil {
		return err
	}
	if s.memberIndex(bankID, m.UserID) >= 0 {
		return models.ErrDuplicate
	}
	s.members = append(s.members, membership{bankID: bankID, userID: m.UserID, roleID: m.RoleID})
	s.bump(stored)
	return nil
}

// SetMemberRole moves userID to roleID within the bank.
func (s *Store) SetMemberRole(_ context.Context, bankID string, version int64, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.checkVersion(bankID, version)
	if err != nil {
		return err
	}
	i := s.memberIndex(bankID, userID)
	if i < 0 {
		return models.ErrNotFound
	}
	if r, ok := s.roles[roleID]; !ok || r.BankID != bankID {
		return models.ErrNotFound
	}
	s.members[i].roleID = roleID
	s.bump(stored)
	return nil
}

func (s *Store) memberIndex(bankID, userID string) int {
	for i, m := range s.members {
		if m.bankID == bankID && m.userID == userID {
			return i
		}
	}
	return -1
}

func (s *Store) checkVersion(bankID string, version int64) (models.Bank, error) {
	stored, ok := s.banks[bankID]
	if !ok {
		return models.Bank{}, models.ErrNotFound
	}
	if stored.Version != version {
		return models.Bank{}, models.ErrStaleVersion
	}
	return stored, nil
}

// bump stores b with the next version and returns it.
func (s *Store) bump(b models.Bank) int64 {
	b.Version++
	s.banks[b.ID] = b
	return b.Version
}

// CreateRole stores role and appends it to its bank.
func (s *Store) CreateRole(_ context.Context, bankVersion int64, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.checkVersion(role.BankID, bankVersion)
	if err != nil {
		return err
	}
	if _, ok := s.roles[role.ID]; ok {
		return models.ErrDuplicate
	}
	s.putRole(*role)
	s.bump(stored)
	return nil
}

func (s *Store) putRole(r models.Role) {
	r.Permissions.ViewCategories = slices.Clone(r.Permissions.ViewCategories)
	s.roles[r.ID] = r
	s.roleOrder = append(s.roleOrder, r.ID)
}

// GetRole returns the role with id.
func (s *Store) GetRole(_ context.Context, roleID string) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[roleID]
	if !ok {
		return nil, models.ErrNotFound
	}
	r.Permissions.ViewCategories = slices.Clone(r.Permissions.ViewCategories)
	return &r, nil
}

// ListRoles returns the bank's roles in creation order.
func (s *Store) ListRoles(_ context.Context, bankID string) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Role{}
	for _, id := range s.roleOrder {
		r := s.roles[id]
		if r.BankID == bankID {
			r.Permissions.ViewCategories = slices.Clone(r.Permissions.ViewCategories)
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdateRolePermissions replaces the permission set of a role.
func (s *Store) UpdateRolePermissions(_ context.Context, roleID string, p models.Permissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[roleID]
	if !ok {
		return models.ErrNotFound
	}
	p.ViewCategories = slices.Clone(p.ViewCategories)
	r.Permissions = p
	s.roles[roleID] = r
	return nil
}

// DeleteRole reassigns the members of roleID to fallbackRoleID and removes
// the role.
func (s *Store) DeleteRole(_ context.Context, bankID string, bankVersion int64, roleID, fallbackRoleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.checkVersion(bankID, bankVersion)
	if err != nil {
		return err
	}
	if r, ok := s.roles[roleID]; !ok || r.BankID != bankID {
		return models.ErrNotFound
	}
	if r, ok := s.roles[fallbackRoleID]; !ok || r.BankID != bankID || fallbackRoleID == roleID {
		return models.ErrNotFound
	}

	for i := range s.members {
		if s.members[i].bankID == bankID && s.members[i].roleID == roleID {
			s.members[i].roleID = fallbackRoleID
		}
	}
	delete(s.roles, roleID)
	s.roleOrder = slices.DeleteFunc(s.roleOrder, func(id string) bool { return id == roleID })
	s.bump(stored)
	return nil
}

// CreatePassword stores p.
func (s *Store) CreatePassword(_ context.Context, p *models.Password) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.passwords[p.ID]; ok {
		return models.ErrDuplicate
	}
	if _, ok := s.banks[p.BankID]; !ok {
		return models.ErrNotFound
	}
	s.passwords[p.ID] = clonePassword(*p)
	s.passwordOrder = append(s.passwordOrder, p.ID)
	return nil
}

// GetPassword returns an entry of the bank, deleted or not.
func (s *Store) GetPassword(_ context.Context, bankID, passwordID string) (*models.Password, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.passwords[passwordID]
	if !ok || p.BankID != bankID {
		return nil, models.ErrNotFound
	}
	p = clonePassword(p)
	return &p, nil
}

// ListPasswords returns live entries of the bank. A nil categories slice
// means every category.
func (s *Store) ListPasswords(_ context.Context, bankID string, categories []string) ([]models.Password, error) {
	return s.listPasswords(func(p models.Password) bool {
		return p.BankID == bankID && !p.Deleted &&
			(categories == nil || slices.Contains(categories, p.Category))
	}), nil
}

// ListDeletedPasswords returns the soft-deleted entries of the bank.
func (s *Store) ListDeletedPasswords(_ context.Context, bankID string) ([]models.Password, error) {
	return s.listPasswords(func(p models.Password) bool {
		return p.BankID == bankID && p.Deleted
	}), nil
}

func (s *Store) listPasswords(keep func(models.Password) bool) []models.Password {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Password{}
	for _, id := range s.passwordOrder {
		if p := s.passwords[id]; keep(p) {
			out = append(out, clonePassword(p))
		}
	}
	return out
}

// UpdatePassword stores the editable fields of a live entry.
func (s *Store) UpdatePassword(_ context.Context, p *models.Password) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.passwords[p.ID]
	if !ok || stored.BankID != p.BankID || stored.Deleted {
		return models.ErrNotFound
	}
	stored.Title = p.Title
	stored.Username = p.Username
	stored.Password = p.Password
	stored.Category = p.Category
	stored.Notes = p.Notes
	stored.UpdatedAt = p.UpdatedAt
	s.passwords[p.ID] = stored
	return nil
}

// SoftDeletePassword marks a live entry deleted at at.
func (s *Store) SoftDeletePassword(_ context.Context, bankID, passwordID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.passwords[passwordID]
	if !ok || p.BankID != bankID || p.Deleted {
		return models.ErrNotFound
	}
	p.Deleted = true
	p.DeletedAt = &at
	s.passwords[passwordID] = p
	return nil
}

// RestorePassword clears the deletion mark of an entry.
func (s *Store) RestorePassword(_ context.Context, bankID, passwordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.passwords[passwordID]
	if !ok || p.BankID != bankID || !p.Deleted {
		return models.ErrNotFound
	}
	p.Deleted = false
	p.DeletedAt = nil
	s.passwords[passwordID] = p
	return nil
}

// SoftDeleteBankPasswords marks every live entry of the bank deleted at at.
func (s *Store) SoftDeleteBankPasswords(_ context.Context, bankID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.passwords {
		if p.BankID != bankID || p.Deleted {
			continue
		}
		stamp := at
		p.Deleted = true
		p.DeletedAt = &stamp
		s.passwords[id] = p
		n++
	}
	return n, nil
}

// RestoreBankPasswords restores the entries of the bank deleted exactly at deletedAt.
func (s *Store) RestoreBankPasswords(_ context.Context, bankID string, deletedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.passwords {
		if p.BankID != bankID || !p.Deleted || p.DeletedAt == nil || !p.DeletedAt.Equal(deletedAt) {
			continue
		}
		p.Deleted = false
		p.DeletedAt = nil
		s.passwords[id] = p
		n++
	}
	return n, nil
}

// PurgeDeleted permanently removes entries and banks soft-deleted before
// cutoff. A purged bank takes its roles, memberships and entries with it.
func (s *Store) PurgeDeleted(_ context.Context, cutoff time.Time) (passwords, banks int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purgedBanks := make(map[string]struct{})
	for id, b := range s.banks {
		if b.Deleted && b.DeletedAt != nil && b.DeletedAt.Before(cutoff) {
			purgedBanks[id] = struct{}{}
			delete(s.banks, id)
			banks++
		}
	}

	s.passwordOrder = slices.DeleteFunc(s.passwordOrder, func(id string) bool {
		p := s.passwords[id]
		_, gone := purgedBanks[p.BankID]
		expired := p.Deleted && p.DeletedAt != nil && p.DeletedAt.Before(cutoff)
		if !gone && !expired {
			return false
		}
		if expired {
			passwords++
		}
		delete(s.passwords, id)
		return true
	})
	if len(purgedBanks) == 0 {
		return passwords, banks, nil
	}

	s.roleOrder = slices.DeleteFunc(s.roleOrder, func(id string) bool {
		if _, gone := purgedBanks[s.roles[id].BankID]; gone {
			delete(s.roles, id)
			return true
		}
		return false
	})
	s.members = slices.DeleteFunc(s.members, func(m membership) bool {
		_, gone := purgedBanks[m.bankID]
		return gone
	})
	return passwords, banks, nil
}

func clonePassword(p models.Password) models.Password {
	if p.DeletedAt != nil {
		at := *p.DeletedAt
		p.DeletedAt = &at
	}
	return p
}
