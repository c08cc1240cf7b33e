package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkedData holds the fields recovered from a page's JSON-LD blocks.
// Empty fields mean no block carried them.
type linkedData struct {
	Author    string
	Provider  string
	Published string
}

func (ld linkedData) complete() bool {
	return ld.Author != "" && ld.Provider != "" && ld.Published != ""
}

// parseLinkedData walks every <script type="application/ld+json"> block,
// preferring NewsArticle/Article nodes and falling back to bare
// Person/Organization nodes for author and provider.
func parseLinkedData(doc *goquery.Document) linkedData {
	var ld linkedData

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return true
		}

		walkNodes(payload, func(node map[string]any) bool {
			typ := strings.ToLower(typeString(node["@type"]))

			if strings.Contains(typ, "article") {
				if ld.Author == "" {
					ld.Author = personName(node["author"])
				}
				if ld.Provider == "" {
					ld.Provider = orgName(node["provider"])
				}
				if ld.Published == "" {
					if s, ok := node["datePublished"].(string); ok {
						ld.Published = strings.TrimSpace(s)
					}
				}
			}
			if ld.Author == "" && strings.Contains(typ, "person") {
				if s, ok := node["name"].(string); ok && strings.TrimSpace(s) != "" {
					ld.Author = strings.TrimSpace(s)
				}
			}
			if ld.Provider == "" && strings.Contains(typ, "organization") {
				if s, ok := node["name"].(string); ok && strings.TrimSpace(s) != "" {
					ld.Provider = strings.TrimSpace(s)
				}
			}
			return !ld.complete()
		})

		return !ld.complete()
	})

	return ld
}

// walkNodes visits every JSON object in a decoded payload depth-first.
// The visitor returns false to stop the walk.
func walkNodes(data any, visit func(map[string]any) bool) bool {
	switch v := data.(type) {
	case map[string]any:
		if !visit(v) {
			return false
		}
		for _, child := range v {
			if !walkNodes(child, visit) {
				return false
			}
		}
	case []any:
		for _, child := range v {
			if !walkNodes(child, visit) {
				return false
			}
		}
	}
	return true
}

// typeString flattens a JSON-LD @type (string or array) for matching.
func typeString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// personName extracts a byline from a JSON-LD author value, joining
// multiple authors with ", ".
func personName(v any) string {
	switch a := v.(type) {
	case string:
		return strings.TrimSpace(a)
	case map[string]any:
		if s, ok := a["name"].(string); ok {
			return strings.TrimSpace(s)
		}
	case []any:
		var names []string
		for _, item := range a {
			if n := personName(item); n != "" {
				names = append(names, n)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// orgName extracts an organization name from a JSON-LD provider value,
// taking the first usable entry of a list.
func orgName(v any) string {
	switch o := v.(type) {
	case string:
		return strings.TrimSpace(o)
	case map[string]any:
		if s, ok := o["name"].(string); ok {
			return strings.TrimSpace(s)
		}
	case []any:
		for _, item := range o {
			if n := orgName(item); n != "" {
				return n
			}
		}
	}
	return ""
}
