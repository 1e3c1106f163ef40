// services/users.go - Account persistence
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"wizzzard/models"
	"wizzzard/utils"
)

var ErrEmailTaken = utils.NewValidationError("email", "Email is already registered")

// UserStore persists accounts. Username comparisons are case-insensitive.
type UserStore interface {
	UsernameTaken(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUID(ctx context.Context, uid string) (*models.User, error)
	SetUsername(ctx context.Context, uid, username string) error
	TouchLogin(ctx context.Context, uid string, at time.Time) error
	ByProvider(ctx context.Context, provider, providerID string) (*models.User, error)
	LinkProvider(ctx context.Context, uid, provider, providerID string) error
}

type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: failed to check username: %v", utils.ErrStore, err)
	}
	return count > 0, nil
}

func (s *GormUserStore) Create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.duplicateCause(ctx, u)
		}
		return fmt.Errorf("%w: failed to create user: %v", utils.ErrStore, err)
	}
	return nil
}

// duplicateCause reports which unique column rejected u. The translated
// duplicate-key error does not carry the constraint name.
func (s *GormUserStore) duplicateCause(ctx context.Context, u *models.User) error {
	if u.Email != nil {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ?", *u.Email).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("%w: failed to check email: %v", utils.ErrStore, err)
		}
		if count > 0 {
			return ErrEmailTaken
		}
	}
	if u.Username != nil {
		return utils.ErrUsernameTaken
	}
	return fmt.Errorf("%w: duplicate user %s", utils.ErrStore, u.UID)
}

func (s *GormUserStore) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %w", utils.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to load user: %v", utils.ErrStore, err)
	}
	return &u, nil
}

func (s *GormUserStore) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *GormUserStore) ByUID(ctx context.Context, uid string) (*models.User, error) {
	return s.first(ctx, "uid = ?", uid)
}

func (s *GormUserStore) SetUsername(ctx context.Context, uid, username string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{"username": username, "display_name": username})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return utils.ErrUsernameTaken
		}
		return fmt.Errorf("%w: failed to set username: %v", utils.ErrStore, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user: %w", utils.ErrNotFound)
	}
	return nil
}

func (s *GormUserStore) TouchLogin(ctx context.Context, uid string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("uid = ?", uid).Update("last_login", at).Error
}

func (s *GormUserStore) ByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %w", utils.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to load user: %v", utils.ErrStore, err)
	}
	return &u, nil
}

func (s *GormUserStore) LinkProvider(ctx context.Context, uid, provider, providerID string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{"provider": provider, "provider_id": providerID})
	if result.Error != nil {
		return fmt.Errorf("%w: failed to link %s account: %v", utils.ErrStore, provider, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user: %w", utils.ErrNotFound)
	}
	return nil
}

// MemoryUserStore keeps accounts in memory for the memory backend and tests.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*models.User)}
}

func (s *MemoryUserStore) usernameTakenLocked(username string) bool {
	for _, u := range s.users {
		if u.Username != nil && strings.EqualFold(*u.Username, username) {
			return true
		}
	}
	return false
}

func (s *MemoryUserStore) UsernameTaken(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usernameTakenLocked(username), nil
}

func (s *MemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Email != nil {
		for _, existing := range s.users {
			if existing.Email != nil && *existing.Email == *u.Email {
				return ErrEmailTaken
			}
		}
	}
	if u.Username != nil && s.usernameTakenLocked(*u.Username) {
		return utils.ErrUsernameTaken
	}

	now := time.Now().UTC()
	u.ID = uint(len(s.users) + 1)
	u.CreatedAt, u.UpdatedAt = now, now
	c := *u
	s.users[u.UID] = &c
	return nil
}

func (s *MemoryUserStore) ByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email != nil && *u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user: %w", utils.ErrNotFound)
}

func (s *MemoryUserStore) ByUID(_ context.Context, uid string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, fmt.Errorf("user: %w", utils.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (s *MemoryUserStore) SetUsername(_ context.Context, uid, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return fmt.Errorf("user: %w", utils.ErrNotFound)
	}
	if (u.Username == nil || !strings.EqualFold(*u.Username, username)) && s.usernameTakenLocked(username) {
		return utils.ErrUsernameTaken
	}
	name := username
	u.Username = &name
	u.DisplayName = username
	return nil
}

func (s *MemoryUserStore) TouchLogin(_ context.Context, uid string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[uid]; ok {
		u.LastLogin = at
	}
	return nil
}

func (s *MemoryUserStore) ByProvider(_ context.Context, provider, providerID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Provider == provider && u.ProviderID != nil && *u.ProviderID == providerID {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user: %w", utils.ErrNotFound)
}

func (s *MemoryUserStore) LinkProvider(_ context.Context, uid, provider, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return fmt.Errorf("user: %w", utils.ErrNotFound)
	}
	id := providerID
	u.Provider = provider
	u.ProviderID = &id
	return nil
}
