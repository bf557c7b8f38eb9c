package feed

import "github.com/feeddrop/feeddrop/internal/models"

// ItemFromRecord translates a persisted item into the display shape. It
// returns nil when a required field is missing, which signals a corrupted or
// partial row; callers skip such records rather than erroring.
func ItemFromRecord(record *models.ContentItem) *Item {
	if record == nil || record.Author == nil {
		return nil
	}
	if record.ID == "" || record.Text == "" || record.CreatedAt.IsZero() || record.Author.ID == "" {
		return nil
	}

	item := &Item{
		ID:        record.ID,
		Text:      record.Text,
		CreatedAt: record.CreatedAt,
		Author: Author{
			ID:        record.Author.ID,
			Handle:    record.Author.Handle,
			Name:      record.Author.Name,
			Verified:  record.Author.Verified,
			AvatarURL: record.Author.AvatarURL,
		},
	}

	for _, h := range record.Hashtags {
		item.Hashtags = append(item.Hashtags, Entity{Value: h.Text, Indices: h.Indices})
	}
	for _, u := range record.URLs {
		item.URLs = append(item.URLs, Entity{Value: u.URL, Indices: u.Indices})
	}
	for _, m := range record.Mentions {
		item.Mentions = append(item.Mentions, Entity{Value: m.Handle, Indices: m.Indices})
	}

	return item
}

// ItemsFromRecords translates persisted items, dropping corrupted rows
func ItemsFromRecords(records []*models.ContentItem) []Item {
	items := make([]Item, 0, len(records))
	for _, record := range records {
		if item := ItemFromRecord(record); item != nil {
			items = append(items, *item)
		}
	}
	return items
}
