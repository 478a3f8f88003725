// Package store defines the persistence boundary for users, posts and upload
// metadata, with in-memory and GORM backed implementations.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/cppla/moments/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when a unique key (e.g. username) is already taken.
	ErrDuplicate = errors.New("store: duplicate key")
)

// UserStore persists accounts. Users are never deleted.
type UserStore interface {
	// Create assigns u.ID and appends u; ErrDuplicate if the username exists.
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id uint) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Count(ctx context.Context) (int64, error)
}

// PostFilter narrows List. Zero values match everything.
type PostFilter struct {
	UserID uint
	Tag    string
	// Keyword matches content or any tag, case-insensitively.
	Keyword string
}

// PostPatch lists the fields to change; nil fields are kept.
type PostPatch struct {
	Content    *string
	Tags       *[]string
	UpdateTime time.Time
}

// PostStore persists posts.
type PostStore interface {
	// List returns matching posts ordered by CreateTime desc, then ID desc.
	List(ctx context.Context, filter PostFilter) ([]models.Post, error)
	Get(ctx context.Context, id uint) (models.Post, error)
	// Insert assigns p.ID and stores p.
	Insert(ctx context.Context, p *models.Post) error
	// Patch applies patch to post id in one step and returns the result.
	// UpdateTime is only recorded when a field actually changes.
	Patch(ctx context.Context, id uint, patch PostPatch) (models.Post, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

// FileStore persists upload metadata.
type FileStore interface {
	Insert(ctx context.Context, f *models.UploadedFile) error
	ListByOwner(ctx context.Context, ownerID uint) ([]models.UploadedFile, error)
	Count(ctx context.Context) (int64, error)
}

// Stores bundles the three stores of one backend.
type Stores struct {
	Users UserStore
	Posts PostStore
	Files FileStore
}

// applyPatch reports whether p changed.
func applyPatch(p *models.Post, patch PostPatch) bool {
	changed := false
	if patch.Content != nil && *patch.Content != p.Content {
		p.Content = *patch.Content
		changed = true
	}
	if patch.Tags != nil && !slices.Equal(*patch.Tags, p.Tags) {
		p.Tags = append(make([]string, 0, len(*patch.Tags)), *patch.Tags...)
		changed = true
	}
	if changed {
		t := patch.UpdateTime
		p.UpdateTime = &t
	}
	return changed
}

// matchesTerms applies the filters that are evaluated in Go for every backend.
func matchesTerms(p models.Post, filter PostFilter) bool {
	if filter.Tag != "" && !hasTag(p.Tags, filter.Tag) {
		return false
	}
	if filter.Keyword == "" {
		return true
	}
	kw := strings.ToLower(filter.Keyword)
	if strings.Contains(strings.ToLower(p.Content), kw) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), kw) {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
