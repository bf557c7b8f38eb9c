package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/internal/models"
	"github.com/feeddrop/feeddrop/pkg/logging"
)

// ErrStoreInconsistent signals more than one row for a supposedly-unique
// identifier. It indicates a uniqueness violation upstream; callers proceed
// with the first match.
var ErrStoreInconsistent = errors.New("store inconsistency: duplicate unique identifier")

// Store is the LocalStore adapter over the mirror database
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a new store
func NewStore(database *DB) *Store {
	return &Store{
		db:     database.DB,
		logger: logging.WithComponent("store"),
	}
}

// FindOrCreateAuthor looks up an author by identifier and creates the row
// from the remote shape when absent. An existing row is returned unchanged;
// avatar updates go through UpdateAuthorAvatar.
func (s *Store) FindOrCreateAuthor(ctx context.Context, remote feed.Author) (*models.Author, error) {
	return s.findOrCreateAuthor(ctx, s.db, remote)
}

func (s *Store) findOrCreateAuthor(ctx context.Context, tx *gorm.DB, remote feed.Author) (*models.Author, error) {
	var matches []models.Author
	if err := tx.WithContext(ctx).Where("id = ?", remote.ID).Limit(2).Find(&matches).Error; err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		if len(matches) > 1 {
			s.logger.Error("Duplicate author rows for unique id",
				zap.String("author", remote.ID),
				zap.Error(ErrStoreInconsistent))
		}
		return &matches[0], nil
	}

	author := &models.Author{
		ID:        remote.ID,
		Handle:    remote.Handle,
		Name:      remote.Name,
		Verified:  remote.Verified,
		AvatarURL: remote.AvatarURL,
	}
	if err := tx.WithContext(ctx).Create(author).Error; err != nil {
		return nil, fmt.Errorf("failed to create author %s: %w", remote.ID, err)
	}
	return author, nil
}

// FindOrCreateItem looks up an item by identifier and creates it when
// absent, resolving the owning author and creating annotation rows alongside.
func (s *Store) FindOrCreateItem(ctx context.Context, item feed.Item) (*models.ContentItem, error) {
	return s.findOrCreateItem(ctx, s.db, item)
}

func (s *Store) findOrCreateItem(ctx context.Context, tx *gorm.DB, item feed.Item) (*models.ContentItem, error) {
	var matches []models.ContentItem
	if err := tx.WithContext(ctx).Where("id = ?", item.ID).Limit(2).Find(&matches).Error; err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		if len(matches) > 1 {
			s.logger.Error("Duplicate item rows for unique id",
				zap.String("item", item.ID),
				zap.Error(ErrStoreInconsistent))
		}
		return &matches[0], nil
	}

	author, err := s.findOrCreateAuthor(ctx, tx, item.Author)
	if err != nil {
		return nil, err
	}

	record := &models.ContentItem{
		ID:        item.ID,
		Text:      foldRetweetText(item),
		CreatedAt: item.CreatedAt,
		AuthorID:  author.ID,
	}
	for _, h := range item.Hashtags {
		record.Hashtags = append(record.Hashtags, models.Hashtag{Text: h.Value, Indices: h.Indices})
	}
	for _, u := range item.URLs {
		record.URLs = append(record.URLs, models.URLEntity{URL: u.Value, Indices: u.Indices})
	}
	for _, m := range item.Mentions {
		record.Mentions = append(record.Mentions, models.Mention{Handle: m.Value, Indices: m.Indices})
	}

	if err := tx.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create item %s: %w", item.ID, err)
	}
	return record, nil
}

// foldRetweetText stores a retweet as its "RT @user:" prefix plus the full
// original text, which the truncated retweet body lacks
func foldRetweetText(item feed.Item) string {
	if item.Retweet == nil {
		return item.Text
	}
	words := strings.Fields(item.Text)
	if len(words) < 2 {
		return item.Text
	}
	return words[0] + " " + words[1] + " " + item.Retweet.Text
}

// FindAuthor retrieves an author by identifier, (nil, nil) when absent
func (s *Store) FindAuthor(ctx context.Context, id string) (*models.Author, error) {
	var author models.Author
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &author, nil
}

// ItemsByOwner returns the mirrored items of an owner's feed, newest first
func (s *Store) ItemsByOwner(ctx context.Context, owner string) ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	err := s.db.WithContext(ctx).
		Joins("JOIN feed_memberships ON feed_memberships.item_id = feed_items.id").
		Where("feed_memberships.owner_id = ?", owner).
		Preload("Author").
		Preload("Hashtags").
		Preload("URLs").
		Preload("Mentions").
		Order("feed_items.created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ItemsMatchingText returns mirrored items containing the fragment, newest
// first
func (s *Store) ItemsMatchingText(ctx context.Context, fragment string) ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	err := s.db.WithContext(ctx).
		Where("text LIKE ?", "%"+fragment+"%").
		Preload("Author").
		Preload("Hashtags").
		Preload("URLs").
		Preload("Mentions").
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AuthorAvatar returns the cached avatar blob of an author, nil when the
// author is unknown or carries no blob
func (s *Store) AuthorAvatar(ctx context.Context, authorID string) ([]byte, error) {
	author, err := s.FindAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, nil
	}
	return author.Avatar, nil
}

// UpdateAuthorAvatar overwrites stored avatar bytes only if changed and
// silently does nothing when the author is not found
func (s *Store) UpdateAuthorAvatar(ctx context.Context, authorID string, avatar []byte) error {
	author, err := s.FindAuthor(ctx, authorID)
	if err != nil {
		return err
	}
	if author == nil {
		return nil
	}
	if bytes.Equal(author.Avatar, avatar) {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Author{}).
		Where("id = ?", authorID).
		Update("avatar", avatar).Error
}

// LinkToFeed records that an item appeared in the owner's feed. The
// (owner, item) pair is created at most once.
func (s *Store) LinkToFeed(ctx context.Context, owner, itemID string) error {
	return s.linkToFeed(ctx, s.db, owner, itemID)
}

func (s *Store) linkToFeed(ctx context.Context, tx *gorm.DB, owner, itemID string) error {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.FeedMembership{}).
		Where("owner_id = ? AND item_id = ?", owner, itemID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&models.FeedMembership{
		OwnerID: owner,
		ItemID:  itemID,
	}).Error
}

// SaveBatch persists a batch of items with their authors and annotations and
// links each into the owner's feed, committing in one transaction. A failed
// transaction discards the whole batch; the caller degrades to memory-only.
func (s *Store) SaveBatch(ctx context.Context, owner string, items []feed.Item) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			record, err := s.findOrCreateItem(ctx, tx, item)
			if err != nil {
				return err
			}
			if err := s.linkToFeed(ctx, tx, owner, record.ID); err != nil {
				return err
			}
		}
		return nil
	})
}
