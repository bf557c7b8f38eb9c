package models

import "time"

// ContentItem represents a single feed post. Body, timestamp and author are
// immutable after creation; only feed memberships referencing the item change.
type ContentItem struct {
	ID        string    `gorm:"type:varchar(32);primaryKey;column:id"`
	Text      string    `gorm:"type:text;not null;column:text"`
	CreatedAt time.Time `gorm:"not null;index;column:created_at"`
	AuthorID  string    `gorm:"type:varchar(32);not null;index;column:author_id"`

	// Relationships
	Author   *Author     `gorm:"foreignKey:AuthorID;references:ID"`
	Hashtags []Hashtag   `gorm:"foreignKey:ItemID;references:ID"`
	URLs     []URLEntity `gorm:"foreignKey:ItemID;references:ID"`
	Mentions []Mention   `gorm:"foreignKey:ItemID;references:ID"`
}

// TableName specifies the table name for ContentItem
func (ContentItem) TableName() string {
	return "feed_items"
}

// Hashtag is an annotation owned by a single item, created alongside it
type Hashtag struct {
	ID      int64  `gorm:"primaryKey;autoIncrement;column:id"`
	ItemID  string `gorm:"type:varchar(32);not null;index;column:item_id"`
	Text    string `gorm:"type:varchar(280);not null;column:text"`
	Indices string `gorm:"type:varchar(32);not null;default:'';column:indices"`
}

// TableName specifies the table name for Hashtag
func (Hashtag) TableName() string {
	return "feed_hashtags"
}

// URLEntity is an annotation owned by a single item, created alongside it
type URLEntity struct {
	ID      int64  `gorm:"primaryKey;autoIncrement;column:id"`
	ItemID  string `gorm:"type:varchar(32);not null;index;column:item_id"`
	URL     string `gorm:"type:varchar(2048);not null;column:url"`
	Indices string `gorm:"type:varchar(32);not null;default:'';column:indices"`
}

// TableName specifies the table name for URLEntity
func (URLEntity) TableName() string {
	return "feed_urls"
}

// Mention is an annotation owned by a single item, created alongside it
type Mention struct {
	ID      int64  `gorm:"primaryKey;autoIncrement;column:id"`
	ItemID  string `gorm:"type:varchar(32);not null;index;column:item_id"`
	Handle  string `gorm:"type:varchar(64);not null;column:handle"`
	Indices string `gorm:"type:varchar(32);not null;default:'';column:indices"`
}

// TableName specifies the table name for Mention
func (Mention) TableName() string {
	return "feed_mentions"
}
