package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cppla/moments/models"
	"github.com/cppla/moments/store"
	"github.com/cppla/moments/utils"
)

const (
	maxContentRunes = 5000
	maxTags         = 10
	maxTagRunes     = 32
	maxKeywordRunes = 100

	// DefaultHotTags is the number of hot tags returned when no limit is given.
	DefaultHotTags = 20
	maxHotTags     = 100
)

// TagCount is a tag with the number of posts carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PostUpdate carries the fields of a partial update; nil fields are left untouched.
type PostUpdate struct {
	Content *string
	Tags    *[]string
}

// PostService implements the post feed with owner-checked mutation.
type PostService struct {
	posts store.PostStore
	users store.UserStore
	now   func() time.Time
}

// NewPostService creates a PostService. users is consulted so every post references an existing author.
func NewPostService(posts store.PostStore, users store.UserStore) *PostService {
	return &PostService{posts: posts, users: users, now: time.Now}
}

// WithClock replaces the time source used for createTime/updateTime.
func (s *PostService) WithClock(now func() time.Time) *PostService {
	s.now = now
	return s
}

// List returns posts newest first.
func (s *PostService) List(ctx context.Context, filter store.PostFilter) ([]models.Post, error) {
	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Get returns a single post.
func (s *PostService) Get(ctx context.Context, id uint) (models.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	return post, nil
}

// Create publishes a post owned by the caller.
func (s *PostService) Create(ctx context.Context, identity models.Identity, content string, tags []string) (models.Post, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return models.Post{}, err
	}
	tags, err = normalizeTags(tags)
	if err != nil {
		return models.Post{}, err
	}

	author, err := s.users.FindByID(ctx, identity.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Post{}, ErrUnknownUser
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("lookup author %d: %w", identity.UserID, err)
	}

	post := models.Post{
		Content:    content,
		UserID:     author.ID,
		Username:   author.Username,
		Tags:       tags,
		CreateTime: s.now(),
	}
	if err := s.posts.Insert(ctx, &post); err != nil {
		return models.Post{}, fmt.Errorf("insert post: %w", err)
	}
	return post, nil
}

// Update applies upd to the caller's post. updateTime only moves when a field changes.
func (s *PostService) Update(ctx context.Context, identity models.Identity, id uint, upd PostUpdate) (models.Post, error) {
	post, err := s.owned(ctx, identity, id)
	if err != nil {
		return models.Post{}, err
	}

	patch := store.PostPatch{UpdateTime: s.now()}
	if upd.Content != nil {
		content, err := normalizeContent(*upd.Content)
		if err != nil {
			return models.Post{}, err
		}
		patch.Content = &content
	}
	if upd.Tags != nil {
		tags, err := normalizeTags(*upd.Tags)
		if err != nil {
			return models.Post{}, err
		}
		patch.Tags = &tags
	}
	if patch.Content == nil && patch.Tags == nil {
		return post, nil
	}

	updated, err := s.posts.Patch(ctx, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("update post %d: %w", id, err)
	}
	return updated, nil
}

// Delete removes the caller's post and returns its id.
func (s *PostService) Delete(ctx context.Context, identity models.Identity, id uint) (uint, error) {
	if _, err := s.owned(ctx, identity, id); err != nil {
		return 0, err
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("delete post %d: %w", id, err)
	}
	return id, nil
}

// Search returns posts whose content or tags contain keyword, newest first.
func (s *PostService) Search(ctx context.Context, keyword string) ([]models.Post, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, invalidf("keyword is required")
	}
	if utf8.RuneCountInString(keyword) > maxKeywordRunes {
		return nil, invalidf("keyword must be at most %d characters", maxKeywordRunes)
	}
	return s.List(ctx, store.PostFilter{Keyword: keyword})
}

// Tags returns every tag in use, most used first and then by name.
func (s *PostService) Tags(ctx context.Context) ([]TagCount, error) {
	posts, err := s.List(ctx, store.PostFilter{})
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, p := range posts {
		for _, t := range p.Tags {
			counts[t]++
		}
	}
	tags := make([]TagCount, 0, len(counts))
	for name, n := range counts {
		tags = append(tags, TagCount{Name: name, Count: n})
	}
	slices.SortFunc(tags, func(a, b TagCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Name, b.Name)
	})
	return tags, nil
}

// HotTags returns the limit most used tags. limit must be within 1..100.
func (s *PostService) HotTags(ctx context.Context, limit int) ([]TagCount, error) {
	if limit < 1 || limit > maxHotTags {
		return nil, invalidf("limit must be between 1 and %d", maxHotTags)
	}
	tags, err := s.Tags(ctx)
	if err != nil {
		return nil, err
	}
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

// Count returns the number of posts.
func (s *PostService) Count(ctx context.Context) (int64, error) {
	return s.posts.Count(ctx)
}

// owned loads post id and checks it belongs to identity.
func (s *PostService) owned(ctx context.Context, identity models.Identity, id uint) (models.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	if post.UserID != identity.UserID {
		return models.Post{}, ErrForbidden
	}
	return post, nil
}

// normalizeContent keeps the text as submitted; markup is rejected rather than rewritten.
func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalidf("content cannot be empty")
	}
	if utils.ContainsMarkup(content) {
		return "", invalidf("content must not contain HTML markup")
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return "", invalidf("content must be at most %d characters", maxContentRunes)
	}
	return content, nil
}

func normalizeTags(tags []string) ([]string, error) {
	tags = utils.UniqueStrings(tags)
	if len(tags) > maxTags {
		return nil, invalidf("at most %d tags are allowed", maxTags)
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > maxTagRunes {
			return nil, invalidf("tag %q exceeds %d characters", t, maxTagRunes)
		}
	}
	return tags, nil
}
