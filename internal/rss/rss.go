// Package rss reads RSS and Atom feeds (Google Alerts and the like) as
// source rows.
package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/deusflow/newsledger/internal/news"
)

const defaultTimeout = 30 * time.Second

// Fetcher downloads and parses feeds.
type Fetcher struct {
	parser *gofeed.Parser
}

// NewFetcher uses client for downloads, or a client with a 30s timeout when
// client is nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "newsledger/1.0"
	return &Fetcher{parser: parser}
}

// Fetch returns the items of one feed as source rows, in feed order.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]news.RawRow, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("error parsing RSS %s: %w", feedURL, err)
	}
	return ItemsToRows(feed), nil
}

// ItemsToRows maps feed items to rows: plain-text title, unwrapped link,
// publication time and author (or the feed title when there is none).
func ItemsToRows(feed *gofeed.Feed) []news.RawRow {
	if feed == nil {
		return nil
	}
	rows := make([]news.RawRow, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		attribution := feed.Title
		if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
			attribution = item.Author.Name
		}
		rows = append(rows, news.RawRow{
			Title:       PlainText(item.Title),
			URL:         UnwrapLink(item.Link),
			PostedAt:    postedAt(item),
			Attribution: strings.TrimSpace(attribution),
		})
	}
	return rows
}

func postedAt(item *gofeed.Item) any {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	case item.Published != "":
		return item.Published
	default:
		return item.Updated
	}
}

// PlainText drops inline markup such as the <b> tags Google Alerts puts
// around matched words, and collapses whitespace.
func PlainText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// UnwrapLink returns the target of a Google redirect link
// (https://www.google.com/url?...&url=<target>); other links are unchanged.
func UnwrapLink(link string) string {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || u.Path != "/url" || !isGoogleHost(u.Hostname()) {
		return link
	}
	q := u.Query()
	for _, key := range []string{"url", "q"} {
		if target := q.Get(key); strings.HasPrefix(target, "http") {
			return target
		}
	}
	return link
}

func isGoogleHost(host string) bool {
	return host == "google.com" || strings.HasSuffix(host, ".google.com") ||
		strings.HasPrefix(host, "www.google.") || strings.HasPrefix(host, "google.")
}
