package feed

import (
	"context"

	"github.com/feeddrop/feeddrop/internal/models"
)

// DataSource fetches one page of feed items for an owner. The network client
// and the store-backed reader are the two implementations; the engine picks
// one per fetch based on reachability and configuration.
type DataSource interface {
	FetchPage(ctx context.Context, owner string, cursor Cursor) (Page, error)
}

// Searcher performs a remote full-text search over the feed
type Searcher interface {
	SearchRemote(ctx context.Context, query string, count int) (Page, error)
}

// LocalStore is the persistence capability consumed by the engine. All
// methods may run on a background context; errors from writes are logged and
// swallowed by the engine.
type LocalStore interface {
	// SaveBatch persists items with their authors and annotations and links
	// them into the owner's feed, committing in one transaction
	SaveBatch(ctx context.Context, owner string, items []Item) error
	// ItemsByOwner returns the mirrored items of an owner's feed, newest
	// first. A nil slice means no rows matched.
	ItemsByOwner(ctx context.Context, owner string) ([]*models.ContentItem, error)
	// ItemsMatchingText returns mirrored items whose text contains the
	// fragment, newest first
	ItemsMatchingText(ctx context.Context, fragment string) ([]*models.ContentItem, error)
	// AuthorAvatar returns the cached avatar blob of an author, nil if the
	// author is unknown or has no cached avatar
	AuthorAvatar(ctx context.Context, authorID string) ([]byte, error)
	// UpdateAuthorAvatar overwrites the stored avatar bytes if changed.
	// Silently does nothing when the author is not found.
	UpdateAuthorAvatar(ctx context.Context, authorID string, avatar []byte) error
}

// SessionGuard is the credential layer boundary. The engine never touches
// credentials itself.
type SessionGuard interface {
	// Verify checks the stored session against the remote API and returns
	// the verified user. Auth rejections carry ErrUnauthorized in the chain.
	Verify(ctx context.Context) (*Author, error)
	// CurrentUserID returns the owner id of the stored session without a
	// network round trip, or "" when no session is stored
	CurrentUserID() string
	// Revoke invalidates and forgets the stored session
	Revoke(ctx context.Context) error
}

// AvatarFetcher retrieves avatar images over the network
type AvatarFetcher interface {
	// FetchAvatar GETs the author's avatar bytes
	FetchAvatar(ctx context.Context, author Author) ([]byte, error)
	// ProbeAvatar HEAD-checks whether the author's avatar URL is still
	// reachable
	ProbeAvatar(ctx context.Context, author Author) (bool, error)
}

// Reachability exposes the process-wide connectivity flag
type Reachability interface {
	IsOnline() bool
}

// ImageCache is the in-memory decoded-image cache keyed by author id
type ImageCache interface {
	Insert(key string, img []byte)
	Value(key string) ([]byte, bool)
}

// BlobCache is an optional second-level shared avatar cache. Implementations
// must be nil-safe; any error is treated as a miss.
type BlobCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte) error
}

// storeSource reads pages from the local mirror. It implements DataSource so
// that offline fetches funnel through the same insert path as network pages.
type storeSource struct {
	store LocalStore
}

// NewStoreSource returns a DataSource backed by the local mirror
func NewStoreSource(store LocalStore) DataSource {
	return &storeSource{store: store}
}

// FetchPage returns the owner's entire mirrored feed as a single page.
// The cursor is ignored: the mirror has no pagination of its own and is
// served whole, as one older page.
func (s *storeSource) FetchPage(ctx context.Context, owner string, _ Cursor) (Page, error) {
	records, err := s.store.ItemsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	page := make(Page, 0, len(records))
	for _, record := range records {
		if item := ItemFromRecord(record); item != nil {
			page = append(page, *item)
		}
	}
	return page, nil
}
