package models

import "time"

// Post is a moment published by a user. UserID and Username always come from
// the author's identity.
type Post struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	UserID     uint       `gorm:"index;not null" json:"userId"`
	Username   string     `gorm:"size:64;not null" json:"username"`
	Tags       []string   `gorm:"type:text;serializer:json" json:"tags"`
	CreateTime time.Time  `gorm:"column:create_time;index;not null" json:"createTime"`
	UpdateTime *time.Time `gorm:"column:update_time" json:"updateTime"`
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Post) Clone() Post {
	out := p
	if p.Tags != nil {
		out.Tags = make([]string, len(p.Tags))
		copy(out.Tags, p.Tags)
	}
	if p.UpdateTime != nil {
		t := *p.UpdateTime
		out.UpdateTime = &t
	}
	return out
}
