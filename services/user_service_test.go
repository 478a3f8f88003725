package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/moments/models"
	"github.com/cppla/moments/store"
	"github.com/cppla/moments/utils"
)

func newUserService() *UserService {
	stores := store.NewMemory()
	return NewUserService(stores.Users, stores.Posts, utils.NewPasswordHasher(bcrypt.MinCost))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	s := newUserService()

	alice, err := s.Register(ctx, "  alice ", "pw1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), alice.ID)
	assert.Equal(t, "alice", alice.Username)
	assert.NotEqual(t, "pw1", alice.PasswordHash)

	_, err = s.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	bob, err := s.Register(ctx, "bob", "pw2")
	require.NoError(t, err)
	assert.Equal(t, uint(2), bob.ID)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	s := newUserService()

	cases := map[string][2]string{
		"empty username":    {"   ", "pw"},
		"long username":     {strings.Repeat("u", 65), "pw"},
		"empty password":    {"carol", ""},
		"password too long": {"carol", strings.Repeat("p", 73)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register(ctx, c[0], c[1])
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegister_ConcurrentSameName(t *testing.T) {
	ctx := context.Background()
	s := newUserService()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Register(ctx, "dup", "pw")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrUsernameTaken)
	}
	assert.Equal(t, 1, succeeded)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newUserService()
	registered, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	got, err := s.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, got.ID)

	_, err = s.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// usernames are case sensitive
	_, err = s.Authenticate(ctx, "Alice", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemory()
	s := NewUserService(stores.Users, stores.Posts, utils.NewPasswordHasher(bcrypt.MinCost))
	alice, err := s.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	bob, err := s.Register(ctx, "bob", "pw")
	require.NoError(t, err)

	for _, author := range []models.User{alice, alice, bob} {
		require.NoError(t, stores.Posts.Insert(ctx, &models.Post{Content: "hi", UserID: author.ID, Username: author.Username, CreateTime: time.Now()}))
	}

	profile, err := s.Profile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, int64(2), profile.PostCount)

	_, err = s.Profile(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_Get(t *testing.T) {
	ctx := context.Background()
	s := newUserService()
	u, err := s.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = s.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}
