package fetch

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// document is the parsed view of a fetched page.
type document struct {
	Title        string
	Text         string
	SecondaryURL string
	PublishedAt  *time.Time
}

// parseDocument extracts title, normalized text, publication time, and the
// canonical secondary-document URL from an HTML body. It never fails:
// malformed content degrades to empty fields.
func parseDocument(rawURL string, body []byte) document {
	var doc document

	pageURL, _ := url.Parse(rawURL)
	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		doc.Title = strings.TrimSpace(article.Title)
		doc.Text = normalizeText(article.TextContent)
	}

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return doc
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSpace(gq.Find("title").First().Text())
	}
	doc.SecondaryURL = secondaryDocumentURL(gq, pageURL)
	doc.PublishedAt = publishedTime(gq)
	return doc
}

// normalizeText collapses all whitespace runs so the fingerprint is stable
// across formatting-only changes.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// secondaryDocumentURL infers the canonical attached document, preferring
// the first PDF link on the page, resolved against the page URL.
func secondaryDocumentURL(gq *goquery.Document, pageURL *url.URL) string {
	var found string
	gq.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		trimmed := strings.ToLower(strings.TrimSpace(href))
		if !strings.HasSuffix(strings.SplitN(trimmed, "?", 2)[0], ".pdf") {
			return true
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		if pageURL != nil {
			found = pageURL.ResolveReference(ref).String()
		} else {
			found = ref.String()
		}
		return false
	})
	return found
}

// publishedTimeLayouts are tried in order against page metadata.
var publishedTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// publishedTime reads the publication timestamp from Open Graph metadata or
// a <time datetime> element.
func publishedTime(gq *goquery.Document) *time.Time {
	candidates := []string{
		gq.Find(`meta[property="article:published_time"]`).First().AttrOr("content", ""),
		gq.Find(`meta[name="date"]`).First().AttrOr("content", ""),
		gq.Find("time[datetime]").First().AttrOr("datetime", ""),
	}
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range publishedTimeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				utc := t.UTC()
				return &utc
			}
		}
	}
	return nil
}
