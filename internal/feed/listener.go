package feed

// Listener receives engine callbacks consumed by the presentation layer.
// Callbacks are invoked from the engine's serialized context and must not
// block.
type Listener interface {
	// PagesChanged reports that a page was inserted at the given edge
	PagesChanged(edge Edge, page Page)
	// AvatarResolved reports that an author's avatar became available
	AvatarResolved(authorID string)
	// ReachabilityChanged reports a flip of the connectivity flag
	ReachabilityChanged(online bool)
	// AuthRequired reports a genuine credential rejection while online
	AuthRequired()
}

// NopListener discards all callbacks
type NopListener struct{}

func (NopListener) PagesChanged(Edge, Page)  {}
func (NopListener) AvatarResolved(string)    {}
func (NopListener) ReachabilityChanged(bool) {}
func (NopListener) AuthRequired()            {}
