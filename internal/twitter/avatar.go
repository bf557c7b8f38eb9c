package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/pkg/telemetry"
)

// AvatarSize selects a size variant of a profile image URL
type AvatarSize string

const (
	AvatarOriginal AvatarSize = ""
	AvatarBigger   AvatarSize = "_bigger"
	AvatarMini     AvatarSize = "_mini"
	AvatarNormal   AvatarSize = "_normal"
)

// AvatarURLForSize derives a size-parameterized image URL from the default
// "_normal" variant the API hands out
func AvatarURLForSize(avatarURL string, size AvatarSize) string {
	if size == AvatarNormal {
		return avatarURL
	}
	return strings.Replace(avatarURL, "_normal", string(size), 1)
}

// FetchAvatar GETs the author's avatar bytes at original size
func (c *Client) FetchAvatar(ctx context.Context, author feed.Author) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitter.fetch_avatar")
	defer span.End()

	u := AvatarURLForSize(author.AvatarURL, AvatarOriginal)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("avatar fetch: unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ProbeAvatar HEAD-checks whether an avatar URL is still reachable. A 403 or
// 404 means the avatar moved; any other response counts as valid.
func (c *Client) ProbeAvatar(ctx context.Context, author feed.Author) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitter.probe_avatar")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, author.AvatarURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return true, nil
}
