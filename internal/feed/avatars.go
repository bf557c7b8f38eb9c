package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// spawnAvatarResolution resolves avatars for a set of authors, fire-and-
// forget relative to page insertion. Pages publish before avatars resolve;
// each arrival triggers a narrow AvatarResolved callback.
func (e *Engine) spawnAvatarResolution(authors []Author) {
	if len(authors) == 0 {
		return
	}

	e.bg.Add(1)
	go func() {
		defer e.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, author := range authors {
			e.resolveAvatar(ctx, author)
		}
	}()
}

// resolveAvatar walks the cache ladder: in-memory cache, shared blob cache,
// local mirror, network. An author already in the in-memory cache costs
// zero database and zero network calls.
func (e *Engine) resolveAvatar(ctx context.Context, author Author) {
	if _, ok := e.images.Value(author.ID); ok {
		return
	}

	if e.blobs != nil {
		if img, err := e.blobs.Get(ctx, author.ID); err == nil && len(img) > 0 {
			e.images.Insert(author.ID, img)
			e.listener.AvatarResolved(author.ID)
			return
		}
	}

	if img, err := e.store.AuthorAvatar(ctx, author.ID); err == nil && len(img) > 0 {
		e.images.Insert(author.ID, img)
		e.cacheBlob(ctx, author.ID, img)
		e.listener.AvatarResolved(author.ID)
		e.spawnFreshnessProbe(author)
		return
	}

	if author.AvatarURL == "" {
		return
	}

	img, err := e.avatars.FetchAvatar(ctx, author)
	if err != nil {
		// Unresolved avatars fall back to the presentation layer's
		// placeholder; not an engine-level error
		e.logger.Debug("Avatar fetch failed",
			zap.String("author", author.ID),
			zap.Error(err))
		return
	}

	e.images.Insert(author.ID, img)
	e.cacheBlob(ctx, author.ID, img)
	e.persistAvatar(author.ID, img)
	e.listener.AvatarResolved(author.ID)
}

func (e *Engine) cacheBlob(ctx context.Context, authorID string, img []byte) {
	if e.blobs == nil {
		return
	}
	if err := e.blobs.Set(ctx, authorID, img); err != nil {
		e.logger.Debug("Blob cache write failed", zap.String("author", authorID), zap.Error(err))
	}
}

// persistAvatar writes avatar bytes through to the mirror asynchronously
func (e *Engine) persistAvatar(authorID string, img []byte) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := e.store.UpdateAuthorAvatar(ctx, authorID, img); err != nil {
			e.logger.Warn("Avatar persistence failed",
				zap.String("author", authorID),
				zap.Error(err))
		}
	}()
}

// spawnFreshnessProbe HEAD-checks whether a mirrored avatar's URL is still
// valid. Nothing acts on a negative result; the probe only logs. The legacy
// user-lookup endpoint needed to refetch a changed avatar URL no longer
// exists upstream.
func (e *Engine) spawnFreshnessProbe(author Author) {
	if author.AvatarURL == "" || !e.net.IsOnline() {
		return
	}

	e.bg.Add(1)
	go func() {
		defer e.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ok, err := e.avatars.ProbeAvatar(ctx, author)
		if err != nil {
			return
		}
		if !ok {
			e.logger.Debug("Mirrored avatar URL is stale",
				zap.String("author", author.ID),
				zap.String("url", author.AvatarURL))
		}
	}()
}
