package extract

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsarc/internal/types"
)

// Extractor turns an article detail page plus its listing fragment into an
// ArticleRecord. It is a pure transformation over its inputs.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With("component", "extractor"),
	}
}

// strategy produces one candidate value for a field, or "".
type strategy func() string

// firstOf runs strategies in order and returns the first non-empty value.
func firstOf(strategies ...strategy) string {
	for _, s := range strategies {
		if v := strings.TrimSpace(s()); v != "" {
			return v
		}
	}
	return ""
}

// Extract builds a record for frag from the detail page HTML. Author and
// provider resolve through structured metadata first, then visible
// markup; both may legitimately end up empty. A record with no
// recoverable date fails with ErrNoDate wrapped in an ExtractError.
func (e *Extractor) Extract(frag Fragment, detailHTML []byte) (types.ArticleRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(detailHTML))
	if err != nil {
		return types.ArticleRecord{}, &types.ExtractError{Link: frag.Link, Err: err}
	}

	ld := parseLinkedData(doc)

	title := strings.TrimSpace(doc.Find("h1").First().Text())

	author := firstOf(
		func() string { return ld.Author },
		metaContent(doc, `meta[name="author"]`),
		textOf(doc, `[rel="author"]`),
	)

	provider := firstOf(
		func() string { return ld.Provider },
		metaContent(doc, `meta[property="og:site_name"]`),
		metaContent(doc, `meta[name="application-name"]`),
	)

	dateStr := firstOf(
		func() string { return ld.Published },
		attrOf(doc, "time", "datetime"),
		metaContent(doc, `meta[property="article:published_time"]`),
		metaContent(doc, `meta[name="pubdate"]`),
		func() string { return frag.CardTime },
	)

	date, ok := ParseTime(dateStr)
	if !ok {
		return types.ArticleRecord{}, &types.ExtractError{Link: frag.Link, Field: "date", Err: types.ErrNoDate}
	}

	return types.ArticleRecord{
		Link:     frag.Link,
		Title:    title,
		Author:   author,
		Provider: provider,
		Date:     date,
	}, nil
}

// metaContent reads the content attribute of the first matching meta tag.
func metaContent(doc *goquery.Document, selector string) strategy {
	return func() string {
		v, _ := doc.Find(selector).First().Attr("content")
		return v
	}
}

// textOf reads the text of the first matching element.
func textOf(doc *goquery.Document, selector string) strategy {
	return func() string {
		return doc.Find(selector).First().Text()
	}
}

// attrOf reads an attribute of the first matching element.
func attrOf(doc *goquery.Document, selector, attr string) strategy {
	return func() string {
		v, _ := doc.Find(selector).First().Attr(attr)
		return v
	}
}
