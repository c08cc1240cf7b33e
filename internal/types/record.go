package types

import (
	"time"
)

// Taipei is the fixed UTC+8 offset all harvested timestamps are normalized
// to. The archive serves Taiwan-local times and the zone has no DST.
var Taipei = time.FixedZone("Asia/Taipei", 8*60*60)

// ArticleRecord is one harvested article. Records are immutable once
// constructed; the controller may discard one but never mutates it.
type ArticleRecord struct {
	// Link is the canonical article URL and the record's unique identity.
	Link string

	// Title is the article headline. May be empty when the page markup
	// is unparseable; emptiness alone is not an extraction failure.
	Title string

	// Author is the byline. Optional — empty means no source had it.
	Author string

	// Provider is the publishing outlet. Optional.
	Provider string

	// Date is the publish timestamp in Taipei time. Required: a record
	// with no recoverable date is never constructed.
	Date time.Time
}

// CSVHeader is the column order for delimited output.
var CSVHeader = []string{"link", "title", "author", "provider", "date"}

// CSVRow serializes the record in CSVHeader order. The date is ISO 8601
// with the +08:00 offset.
func (r ArticleRecord) CSVRow() []string {
	return []string{
		r.Link,
		r.Title,
		r.Author,
		r.Provider,
		r.Date.In(Taipei).Format(time.RFC3339),
	}
}
