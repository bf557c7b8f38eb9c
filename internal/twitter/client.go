package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/pkg/config"
	"github.com/feeddrop/feeddrop/pkg/logging"
	"github.com/feeddrop/feeddrop/pkg/telemetry"
)

// createdAtLayout is the timestamp format of the v1.1 API
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Client wraps the remote feed API. It implements the engine's DataSource,
// Searcher and AvatarFetcher capabilities.
type Client struct {
	baseURL  string
	http     *http.Client
	token    func() string
	pageSize int
	logger   *zap.Logger
}

// New creates a new API client. The token callback supplies the current
// bearer token so a re-authenticated session is picked up without rebuilding
// the client.
func New(cfg *config.TwitterConfig, token func() string) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("twitter_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "twitter-client"))

	client := &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		token:    token,
		pageSize: cfg.PageSize,
		logger:   logger,
	}

	logger.Info("Twitter client initialized", zap.String("url", cfg.URL))

	return client, nil
}

// tweet is the wire shape of a single status
type tweet struct {
	IDStr     string `json:"id_str"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	User      struct {
		IDStr           string `json:"id_str"`
		ScreenName      string `json:"screen_name"`
		Name            string `json:"name"`
		Verified        bool   `json:"verified"`
		ProfileImageURL string `json:"profile_image_url_https"`
	} `json:"user"`
	Entities struct {
		Hashtags []struct {
			Text    string `json:"text"`
			Indices []int  `json:"indices"`
		} `json:"hashtags"`
		URLs []struct {
			URL     string `json:"url"`
			Indices []int  `json:"indices"`
		} `json:"urls"`
		UserMentions []struct {
			ScreenName string `json:"screen_name"`
			Indices    []int  `json:"indices"`
		} `json:"user_mentions"`
	} `json:"entities"`
	RetweetedStatus *tweet `json:"retweeted_status"`
}

// FetchPage fetches one page of the home timeline. The cursor's RefID is
// passed as since_id for newer fetches and max_id for older ones; the anchor
// item may be re-delivered and is deduplicated by the caller.
func (c *Client) FetchPage(ctx context.Context, _ string, cursor feed.Cursor) (feed.Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitter.home_timeline")
	defer span.End()

	count := cursor.Count
	if count <= 0 {
		count = c.pageSize
	}

	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	if cursor.RefID != "" {
		if cursor.Direction == feed.Newer {
			params.Set("since_id", cursor.RefID)
		} else {
			params.Set("max_id", cursor.RefID)
		}
	}

	var tweets []tweet
	if err := c.get(ctx, "/statuses/home_timeline.json", params, &tweets); err != nil {
		return nil, fmt.Errorf("failed to fetch timeline: %w", err)
	}

	return itemsFromTweets(tweets), nil
}

// SearchRemote performs a full-text search over recent items
func (c *Client) SearchRemote(ctx context.Context, query string, count int) (feed.Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitter.search")
	defer span.End()

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))

	var response struct {
		Statuses []tweet `json:"statuses"`
	}
	if err := c.get(ctx, "/search/tweets.json", params, &response); err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	return itemsFromTweets(response.Statuses), nil
}

// VerifyCredentials checks the current session against the API and returns
// the verified user
func (c *Client) VerifyCredentials(ctx context.Context) (*feed.Author, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitter.verify_credentials")
	defer span.End()

	var user struct {
		IDStr           string `json:"id_str"`
		ScreenName      string `json:"screen_name"`
		Name            string `json:"name"`
		Verified        bool   `json:"verified"`
		ProfileImageURL string `json:"profile_image_url_https"`
	}
	if err := c.get(ctx, "/account/verify_credentials.json", nil, &user); err != nil {
		return nil, fmt.Errorf("failed to verify credentials: %w", err)
	}

	return &feed.Author{
		ID:        user.IDStr,
		Handle:    user.ScreenName,
		Name:      user.Name,
		Verified:  user.Verified,
		AvatarURL: user.ProfileImageURL,
	}, nil
}

// get performs an authenticated GET and decodes the JSON response. A 401
// surfaces ErrUnauthorized so callers can tell rejection from transport
// trouble.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", path, feed.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func itemsFromTweets(tweets []tweet) feed.Page {
	page := make(feed.Page, 0, len(tweets))
	for _, t := range tweets {
		if item := itemFromTweet(t); item != nil {
			page = append(page, *item)
		}
	}
	return page
}

func itemFromTweet(t tweet) *feed.Item {
	created, err := time.Parse(createdAtLayout, t.CreatedAt)
	if err != nil {
		return nil
	}

	item := &feed.Item{
		ID:        t.IDStr,
		Text:      t.Text,
		CreatedAt: created,
		Author: feed.Author{
			ID:        t.User.IDStr,
			Handle:    t.User.ScreenName,
			Name:      t.User.Name,
			Verified:  t.User.Verified,
			AvatarURL: t.User.ProfileImageURL,
		},
	}

	for _, h := range t.Entities.Hashtags {
		item.Hashtags = append(item.Hashtags, feed.Entity{Value: h.Text, Indices: formatIndices(h.Indices)})
	}
	for _, u := range t.Entities.URLs {
		item.URLs = append(item.URLs, feed.Entity{Value: u.URL, Indices: formatIndices(u.Indices)})
	}
	for _, m := range t.Entities.UserMentions {
		item.Mentions = append(item.Mentions, feed.Entity{Value: m.ScreenName, Indices: formatIndices(m.Indices)})
	}

	if t.RetweetedStatus != nil {
		item.Retweet = itemFromTweet(*t.RetweetedStatus)
	}

	return item
}

func formatIndices(indices []int) string {
	if len(indices) != 2 {
		return ""
	}
	return strconv.Itoa(indices[0]) + "," + strconv.Itoa(indices[1])
}
