package models

import "time"

// UploadedFile records a locally stored media upload.
type UploadedFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	URL          string    `gorm:"size:1024;not null" json:"url"` // public URL like /uploads/...
	Filename     string    `gorm:"size:255;not null;uniqueIndex" json:"filename"`
	OriginalName string    `gorm:"size:255" json:"originalName"`
	Size         int64     `gorm:"not null" json:"size"`
	MimeType     string    `gorm:"size:128;not null" json:"mimetype"`
	OwnerID      uint      `gorm:"index;not null" json:"ownerId"`
	FilePath     string    `gorm:"size:1024;not null" json:"-"`
	CreateTime   time.Time `gorm:"column:create_time;not null" json:"createTime"`
}
