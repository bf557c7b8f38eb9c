package models

// FeedMembership records that an item appeared in a given owner's feed.
// A given (owner, item) pair appears at most once.
type FeedMembership struct {
	ID      int64  `gorm:"primaryKey;autoIncrement;column:id"`
	OwnerID string `gorm:"type:varchar(32);not null;uniqueIndex:feed_memberships_ux1;column:owner_id"`
	ItemID  string `gorm:"type:varchar(32);not null;uniqueIndex:feed_memberships_ux1;column:item_id"`

	Item *ContentItem `gorm:"foreignKey:ItemID;references:ID"`
}

// TableName specifies the table name for FeedMembership
func (FeedMembership) TableName() string {
	return "feed_memberships"
}
