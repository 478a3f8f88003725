package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cppla/moments/models"
)

// NewMemory returns stores held in process memory.
func NewMemory() Stores {
	return Stores{
		Users: NewMemoryUserStore(),
		Posts: NewMemoryPostStore(),
		Files: NewMemoryFileStore(),
	}
}

// MemoryUserStore keeps users in a slice guarded by a RWMutex.
type MemoryUserStore struct {
	mu     sync.RWMutex
	users  []models.User
	lastID uint
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{}
}

func (s *MemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrDuplicate
		}
	}
	s.lastID++
	u.ID = s.lastID
	s.users = append(s.users, *u)
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id uint) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryUserStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// MemoryPostStore keeps posts in insertion order. IDs are never reused after a delete.
type MemoryPostStore struct {
	mu     sync.RWMutex
	posts  []models.Post
	lastID uint
}

func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{}
}

func (s *MemoryPostStore) List(_ context.Context, filter PostFilter) ([]models.Post, error) {
	s.mu.RLock()
	out := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if filter.UserID != 0 && p.UserID != filter.UserID {
			continue
		}
		if !matchesTerms(p, filter) {
			continue
		}
		out = append(out, p.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].CreateTime.After(out[j].CreateTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryPostStore) Get(_ context.Context, id uint) (models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.posts[i].Clone(), nil
	}
	return models.Post{}, ErrNotFound
}

func (s *MemoryPostStore) Insert(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	p.ID = s.lastID
	s.posts = append(s.posts, p.Clone())
	return nil
}

func (s *MemoryPostStore) Patch(_ context.Context, id uint, patch PostPatch) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Post{}, ErrNotFound
	}
	applyPatch(&s.posts[i], patch)
	return s.posts[i].Clone(), nil
}

func (s *MemoryPostStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	return nil
}

func (s *MemoryPostStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.posts)), nil
}

func (s *MemoryPostStore) CountByUser(_ context.Context, userID uint) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.posts {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

// indexOf must be called with mu held.
func (s *MemoryPostStore) indexOf(id uint) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}

// MemoryFileStore keeps upload metadata in memory.
type MemoryFileStore struct {
	mu     sync.RWMutex
	files  []models.UploadedFile
	lastID uint
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{}
}

func (s *MemoryFileStore) Insert(_ context.Context, f *models.UploadedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.files {
		if existing.Filename == f.Filename {
			return ErrDuplicate
		}
	}
	s.lastID++
	f.ID = s.lastID
	s.files = append(s.files, *f)
	return nil
}

func (s *MemoryFileStore) ListByOwner(_ context.Context, ownerID uint) ([]models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.UploadedFile{}
	for i := len(s.files) - 1; i >= 0; i-- {
		if s.files[i].OwnerID == ownerID {
			out = append(out, s.files[i])
		}
	}
	return out, nil
}

func (s *MemoryFileStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.files)), nil
}
