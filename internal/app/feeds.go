package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/deusflow/newsledger/internal/config"
	"github.com/deusflow/newsledger/internal/news"
	"github.com/deusflow/newsledger/internal/rss"
	"github.com/deusflow/newsledger/internal/storage"
)

// ErrFeedUnavailable marks a feed that could not be read. The run skips it
// and goes on with the next one.
var ErrFeedUnavailable = errors.New("feed unavailable")

// FeedSource provides the data rows of one source feed.
type FeedSource interface {
	Name() string
	Rows(ctx context.Context) ([]news.RawRow, error)
}

// SheetFeed reads a sheet of the input workbook.
type SheetFeed struct {
	Store         storage.Store
	SpreadsheetID string
	Sheet         string
}

func (f *SheetFeed) Name() string { return f.Sheet }

func (f *SheetFeed) Rows(ctx context.Context) ([]news.RawRow, error) {
	values, err := f.Store.ReadValues(ctx, f.SpreadsheetID, f.Sheet)
	if errors.Is(err, storage.ErrSheetNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return news.RowsFromValues(values), nil
}

// RSSFeed reads an RSS or Atom URL.
type RSSFeed struct {
	Fetcher *rss.Fetcher
	Title   string
	URL     string
}

func (f *RSSFeed) Name() string { return f.Title }

func (f *RSSFeed) Rows(ctx context.Context) ([]news.RawRow, error) {
	rows, err := f.Fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	return rows, nil
}

// BuildFeeds creates the configured feeds in priority order.
func BuildFeeds(cfg config.Config, store storage.Store, fetcher *rss.Fetcher) []FeedSource {
	feeds := make([]FeedSource, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		switch fc.Kind {
		case config.FeedRSS:
			if fetcher == nil {
				fetcher = rss.NewFetcher(nil)
			}
			feeds = append(feeds, &RSSFeed{Fetcher: fetcher, Title: fc.Name, URL: fc.URL})
		default:
			feeds = append(feeds, &SheetFeed{Store: store, SpreadsheetID: cfg.InputSpreadsheetID, Sheet: fc.Name})
		}
	}
	return feeds
}
