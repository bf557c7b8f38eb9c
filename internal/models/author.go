package models

// Author represents a content creator encountered in a feed. A row is created
// on first encounter and never deleted; only the cached avatar bytes change.
type Author struct {
	ID        string `gorm:"type:varchar(32);primaryKey;column:id"`
	Handle    string `gorm:"type:varchar(64);not null;column:handle"`
	Name      string `gorm:"type:varchar(128);not null;column:name"`
	Verified  bool   `gorm:"not null;default:false;column:verified"`
	AvatarURL string `gorm:"type:varchar(1024);not null;default:'';column:avatar_url"`
	Avatar    []byte `gorm:"column:avatar"`
}

// TableName specifies the table name for Author
func (Author) TableName() string {
	return "feed_authors"
}
