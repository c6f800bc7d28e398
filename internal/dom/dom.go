// Package dom wraps goquery for reading page-HTML snapshots. The injection
// controller only ever reads the page through a parsed snapshot; the live
// page is mutated exclusively through plans.
package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed page snapshot.
type Document struct {
	doc *goquery.Document
}

// Parse parses an HTML snapshot.
func Parse(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Find returns all nodes matching the selector.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// FirstMatch tries selectors in order against root and returns the first
// selection with at least one non-empty text node, or nil.
func FirstMatch(root *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		s := root.Find(sel)
		if s.Length() > 0 && Text(s) != "" {
			return s.First()
		}
	}
	return nil
}

// ClosestAny walks up from s and returns the first ancestor matching any of
// the selectors, tried in order, or nil.
func ClosestAny(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		c := s.Closest(sel)
		if c.Length() > 0 {
			return c
		}
	}
	return nil
}

// Text returns the trimmed text content of the first node in s.
func Text(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.First().Text())
}

// Attr returns the named attribute of the first node in s, or "".
func Attr(s *goquery.Selection, name string) string {
	if s == nil {
		return ""
	}
	v, _ := s.First().Attr(name)
	return strings.TrimSpace(v)
}
