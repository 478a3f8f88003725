package models

import "time"

// User is a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreateTime   time.Time `gorm:"column:create_time;not null" json:"createTime"`
}

// Identity is the {userId, username} pair carried by a verified token.
type Identity struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
}
