// Package admin manages the user directory and resolver groups.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/store"
	"golang.org/x/crypto/bcrypt"
)

// Record prefixes.
const (
	UserIDPrefix  = "USR"
	GroupIDPrefix = "GRP"
)

// StoredUser is the persisted form of a user, password hash included.
type StoredUser struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

func (s StoredUser) toDomain() *domain.User {
	u := s.User
	u.PasswordHash = s.PasswordHash
	if u.Groups == nil {
		u.Groups = []string{}
	}
	return &u
}

// Service implements user and group administration.
type Service struct {
	users  store.Store[StoredUser]
	groups store.Store[domain.ResolverGroup]

	now        func() time.Time
	bcryptCost int
}

// NewService creates a new administration service.
func NewService(users store.Store[StoredUser], groups store.Store[domain.ResolverGroup]) *Service {
	return &Service{
		users:      users,
		groups:     groups,
		now:        func() time.Time { return time.Now().UTC() },
		bcryptCost: bcrypt.DefaultCost,
	}
}

// CreateUserInput holds data for adding a user.
type CreateUserInput struct {
	Name     string
	Email    string
	Role     domain.Role
	Groups   []string
	Password string
}

// UpdateUserInput holds changed user fields. Nil means unchanged.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Role     *domain.Role
	Groups   *[]string
	Password *string
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	stored, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, 0, len(stored))
	for _, su := range stored {
		out = append(out, *su.toDomain())
	}
	return out, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	su, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return su.toDomain(), nil
}

// FindUserByLogin matches login against user names and e-mail addresses,
// case-insensitively.
func (s *Service) FindUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, ErrUserNotFound
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Name, login) || strings.EqualFold(users[i].Email, login) {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// FindUserByName returns the user with exactly the given display name.
func (s *Service) FindUserByName(ctx context.Context, name string) (*domain.User, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Name == name {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser adds a user. Role defaults to customer.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	now := s.now()
	user := domain.User{
		ID:        store.NewID(UserIDPrefix),
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Role:      input.Role,
		Groups:    input.Groups,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Role == "" {
		user.Role = domain.RoleCustomer
	}

	if err := s.prepareUser(ctx, &user, ""); err != nil {
		return nil, err
	}

	su := StoredUser{User: user}
	if input.Password != "" {
		hash, err := s.hashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		su.PasswordHash = hash
	}

	if err := s.users.Create(ctx, user.ID, su); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return su.toDomain(), nil
}

// UpdateUser changes user fields.
func (s *Service) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	su, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	user := su.User
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.Groups != nil {
		user.Groups = *input.Groups
	}
	user.UpdatedAt = s.now()

	if err := s.prepareUser(ctx, &user, id); err != nil {
		return nil, err
	}

	su.User = user
	if input.Password != nil {
		hash, err := s.hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		su.PasswordHash = hash
	}

	if err := s.users.Update(ctx, id, su); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return su.toDomain(), nil
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ImportUser stores a user as given, keeping its id and password hash.
func (s *Service) ImportUser(ctx context.Context, user domain.User) error {
	if user.Groups == nil {
		user.Groups = []string{}
	}
	su := StoredUser{User: user, PasswordHash: user.PasswordHash}
	su.User.PasswordHash = ""
	if err := s.users.Create(ctx, user.ID, su); err != nil {
		return fmt.Errorf("import user %s: %w", user.ID, err)
	}
	return nil
}

// prepareUser validates and normalizes a user. selfID excludes the user
// being updated from uniqueness checks.
func (s *Service) prepareUser(ctx context.Context, user *domain.User, selfID string) error {
	if user.Name == "" {
		return ErrNameRequired
	}
	if !user.Role.IsValid() {
		return ErrInvalidRole
	}

	if user.Role == domain.RoleCustomer {
		user.Groups = []string{}
	} else if user.Groups == nil {
		user.Groups = []string{}
	}

	if len(user.Groups) > 0 {
		known, err := s.groupNames(ctx)
		if err != nil {
			return err
		}
		for _, g := range user.Groups {
			if !known[g] {
				return fmt.Errorf("%w: %s", ErrUnknownGroup, g)
			}
		}
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	// Names and e-mails share one login namespace, and names also key
	// incident ownership.
	for _, other := range users {
		if other.ID == selfID {
			continue
		}
		if strings.EqualFold(other.Name, user.Name) || strings.EqualFold(other.Email, user.Name) {
			return ErrNameTaken
		}
		if user.Email != "" && (strings.EqualFold(other.Email, user.Email) || strings.EqualFold(other.Name, user.Email)) {
			return ErrEmailTaken
		}
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateGroupInput holds data for adding a resolver group.
type CreateGroupInput struct {
	Name        string
	Description string
	Lead        string
}

// UpdateGroupInput holds changed group fields. Nil means unchanged.
type UpdateGroupInput struct {
	Name        *string
	Description *string
	Lead        *string
}

// ListGroups returns all resolver groups.
func (s *Service) ListGroups(ctx context.Context) ([]domain.ResolverGroup, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// GetGroup returns a resolver group by id.
func (s *Service) GetGroup(ctx context.Context, id string) (*domain.ResolverGroup, error) {
	g, err := s.groups.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

// CreateGroup adds a resolver group.
func (s *Service) CreateGroup(ctx context.Context, input CreateGroupInput) (*domain.ResolverGroup, error) {
	now := s.now()
	g := domain.ResolverGroup{
		ID:          store.NewID(GroupIDPrefix),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Lead:        input.Lead,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.validateGroup(ctx, &g); err != nil {
		return nil, err
	}
	if err := s.groups.Create(ctx, g.ID, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return &g, nil
}

// UpdateGroup changes group fields.
func (s *Service) UpdateGroup(ctx context.Context, id string, input UpdateGroupInput) (*domain.ResolverGroup, error) {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		g.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		g.Description = *input.Description
	}
	if input.Lead != nil {
		g.Lead = *input.Lead
	}
	g.UpdatedAt = s.now()

	if err := s.validateGroup(ctx, g); err != nil {
		return nil, err
	}
	if err := s.groups.Update(ctx, id, *g); err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return g, nil
}

// DeleteGroup removes a resolver group.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	if err := s.groups.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// ImportGroup stores a group as given.
func (s *Service) ImportGroup(ctx context.Context, g domain.ResolverGroup) error {
	if err := s.groups.Create(ctx, g.ID, g); err != nil {
		return fmt.Errorf("import group %s: %w", g.ID, err)
	}
	return nil
}

func (s *Service) validateGroup(ctx context.Context, g *domain.ResolverGroup) error {
	if g.Name == "" {
		return ErrNameRequired
	}
	groups, err := s.groups.List(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	for _, other := range groups {
		if other.ID != g.ID && strings.EqualFold(other.Name, g.Name) {
			return ErrGroupNameTaken
		}
	}
	return nil
}

func (s *Service) groupNames(ctx context.Context) (map[string]bool, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	known := make(map[string]bool, len(groups))
	for _, g := range groups {
		known[g.Name] = true
	}
	return known, nil
}
