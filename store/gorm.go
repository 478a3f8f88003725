package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/moments/models"
)

// NewGorm returns stores backed by db. The schema must already be migrated.
func NewGorm(db *gorm.DB) Stores {
	return Stores{
		Users: &GormUserStore{db: db},
		Posts: &GormPostStore{db: db},
		Files: &GormFileStore{db: db},
	}
}

// translate maps GORM errors onto store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// GormUserStore persists users in the users table.
type GormUserStore struct {
	db *gorm.DB
}

func (s *GormUserStore) Create(ctx context.Context, u *models.User) error {
	u.ID = 0
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormUserStore) FindByID(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	return u, translate(err)
}

func (s *GormUserStore) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	return u, translate(err)
}

func (s *GormUserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

// GormPostStore persists posts in the posts table; tags are stored as a JSON array.
type GormPostStore struct {
	db *gorm.DB
}

func (s *GormPostStore) List(ctx context.Context, filter PostFilter) ([]models.Post, error) {
	var posts []models.Post
	q := s.db.WithContext(ctx).Order("create_time DESC").Order("id DESC")
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	if filter.Tag == "" && filter.Keyword == "" {
		return posts, nil
	}
	// JSON columns differ between MySQL and SQLite, so tags and keywords are matched after loading
	out := posts[:0]
	for _, p := range posts {
		if matchesTerms(p, filter) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *GormPostStore) Get(ctx context.Context, id uint) (models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).First(&p, id).Error
	return p, translate(err)
}

func (s *GormPostStore) Insert(ctx context.Context, p *models.Post) error {
	p.ID = 0
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *GormPostStore) Patch(ctx context.Context, id uint, patch PostPatch) (models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			// sqlite has no row locks; its single connection already serializes the transaction
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&p, id).Error; err != nil {
			return err
		}
		if !applyPatch(&p, patch) {
			return nil
		}
		return tx.Model(&p).Select("content", "tags", "update_time").Updates(&p).Error
	})
	if err != nil {
		return models.Post{}, translate(err)
	}
	return p, nil
}

func (s *GormPostStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormPostStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error
	return n, err
}

func (s *GormPostStore) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// GormFileStore persists upload metadata in the uploaded_files table.
type GormFileStore struct {
	db *gorm.DB
}

func (s *GormFileStore) Insert(ctx context.Context, f *models.UploadedFile) error {
	f.ID = 0
	return translate(s.db.WithContext(ctx).Create(f).Error)
}

func (s *GormFileStore) ListByOwner(ctx context.Context, ownerID uint) ([]models.UploadedFile, error) {
	files := []models.UploadedFile{}
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id DESC").Find(&files).Error
	return files, err
}

func (s *GormFileStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.UploadedFile{}).Count(&n).Error
	return n, err
}
