package feed

import "time"

// Author is the network/display shape of a content creator
type Author struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Name      string `json:"name"`
	Verified  bool   `json:"verified"`
	AvatarURL string `json:"avatar_url"`
}

// Entity is a hashtag, url or mention annotation with its text indices
type Entity struct {
	Value   string `json:"value"`
	Indices string `json:"indices,omitempty"`
}

// Item is the network/display shape of a single feed post
type Item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Author    Author    `json:"author"`
	Hashtags  []Entity  `json:"hashtags,omitempty"`
	URLs      []Entity  `json:"urls,omitempty"`
	Mentions  []Entity  `json:"mentions,omitempty"`

	// Retweet carries the original item when this one is a truncated
	// retweet of it
	Retweet *Item `json:"retweet,omitempty"`
}

// Page is one fetch response's worth of items, ordered newest-first
type Page []Item

// State describes the engine's position in its lifecycle
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateSynced          State = "synced"
	StateOffline         State = "offline"
)

// Edge names where a page was inserted relative to the existing pages
type Edge string

const (
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)
