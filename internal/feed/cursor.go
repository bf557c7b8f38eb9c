package feed

import "github.com/google/uuid"

// Direction of a paginated fetch relative to an anchor item id
type Direction int

const (
	// Newer requests items more recent than the anchor id
	Newer Direction = iota
	// Older requests items preceding the anchor id
	Older
)

func (d Direction) String() string {
	if d == Newer {
		return "newer"
	}
	return "older"
}

// Cursor carries the pagination anchor for one fetch. An empty RefID means
// "from the top of the remote feed".
type Cursor struct {
	Direction Direction
	RefID     string
	Count     int
}

// PageRequest identifies one issued fetch. The engine records the most
// recently issued request per direction; a response is applied only if its
// request is still the recorded one, compared by pointer identity.
type PageRequest struct {
	ID     string
	Cursor Cursor
}

// NewPageRequest creates a request for the given cursor with a fresh
// correlation id.
func NewPageRequest(cursor Cursor) *PageRequest {
	return &PageRequest{
		ID:     uuid.NewString(),
		Cursor: cursor,
	}
}
