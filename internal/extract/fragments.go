// Package extract recovers structured article records from the archive
// listing and from article detail pages. Each field is resolved through an
// ordered chain of strategies: structured metadata first, visible markup
// as fallback.
package extract

import (
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"newsarc/internal/browse"
)

const archiveHost = "https://tw.news.yahoo.com/"

// Fragment is one article entry found on the listing page.
type Fragment struct {
	// Link is the absolute article URL.
	Link string

	// CardTime is the raw datetime attribute from the listing card's
	// <time> element, when one exists near the anchor. Used both for
	// pre-filtering and as a last-resort publish date.
	CardTime string
}

// ListFragments parses a page snapshot and returns the article fragments
// currently rendered, in document order. Anchors that do not resolve to an
// archive article URL are dropped.
func ListFragments(snap *browse.Snapshot) ([]Fragment, error) {
	doc, err := html.Parse(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(snap.URL)
	if err != nil || snap.URL == "" {
		base, _ = url.Parse(archiveHost)
	}

	anchors, err := htmlquery.QueryAll(doc, `//a[contains(@href, ".html")]`)
	if err != nil {
		return nil, err
	}

	var frags []Fragment
	for _, a := range anchors {
		href := htmlquery.SelectAttr(a, "href")
		if href == "" {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		link := abs.String()
		if !strings.HasPrefix(link, archiveHost) || !strings.HasSuffix(link, ".html") {
			continue
		}
		frags = append(frags, Fragment{Link: link, CardTime: cardTime(a)})
	}
	return frags, nil
}

// cardTime finds the publish timestamp on the listing card that contains
// the anchor: a <time datetime> inside the anchor itself, or on the
// nearest enclosing card element.
func cardTime(anchor *html.Node) string {
	exprs := []string{
		`.//time[@datetime][1]`,
		`ancestor::*[time[@datetime]][1]/time[@datetime][1]`,
		`ancestor::*[.//time[@datetime]][1]//time[@datetime][1]`,
	}
	for _, expr := range exprs {
		node, err := htmlquery.Query(anchor, expr)
		if err != nil || node == nil {
			continue
		}
		if dt := htmlquery.SelectAttr(node, "datetime"); dt != "" {
			return dt
		}
	}
	return ""
}
