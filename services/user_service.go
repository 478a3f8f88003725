package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cppla/moments/models"
	"github.com/cppla/moments/store"
	"github.com/cppla/moments/utils"
)

const maxUsernameRunes = 64

// UserService registers and authenticates users.
type UserService struct {
	users  store.UserStore
	posts  store.PostStore
	hasher utils.PasswordHasher
	now    func() time.Time
}

// Profile is the public view of a user.
type Profile struct {
	models.User
	PostCount int64 `json:"postCount"`
}

// NewUserService creates a UserService over users; posts backs the profile post count.
func NewUserService(users store.UserStore, posts store.PostStore, hasher utils.PasswordHasher) *UserService {
	return &UserService{users: users, posts: posts, hasher: hasher, now: time.Now}
}

// Register creates an account. Usernames are unique and compared case sensitively.
func (s *UserService) Register(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, invalidf("username is required")
	}
	if utf8.RuneCountInString(username) > maxUsernameRunes {
		return models.User{}, invalidf("username must be at most %d characters", maxUsernameRunes)
	}
	if password == "" {
		return models.User{}, invalidf("password is required")
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return models.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return models.User{}, invalidf("password must be at most 72 bytes")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: hash,
		CreateTime:   s.now(),
	}
	if err := s.users.Create(ctx, &user); err != nil {
		// lost a race with a concurrent registration of the same name
		if errors.Is(err, store.ErrDuplicate) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate returns the user matching username and password.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Check(user.PasswordHash, password) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns the user with id.
func (s *UserService) Get(ctx context.Context, id uint) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("lookup user %d: %w", id, err)
	}
	return user, nil
}

// Profile returns the public profile of user id.
func (s *UserService) Profile(ctx context.Context, id uint) (Profile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	n, err := s.posts.CountByUser(ctx, id)
	if err != nil {
		return Profile{}, fmt.Errorf("count posts of user %d: %w", id, err)
	}
	return Profile{User: user, PostCount: n}, nil
}

// Count returns the number of registered users.
func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.users.Count(ctx)
}
