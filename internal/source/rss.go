// Package source fetches external RSS and Atom feeds whose items are imported as posts.
package source

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/SlyMarbo/rss"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/lo"

	"github.com/0x0BSoD/constellation/internal/model"
)

const fetchTimeout = 30 * time.Second

// contextTransport injects a context into every outgoing request so that
// context cancellation and deadlines propagate through the rss library.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

type RSSSource struct {
	URL      string
	RetryMax int
}

func NewRSSSource(url string) RSSSource {
	return RSSSource{URL: url, RetryMax: 3}
}

func (s RSSSource) Name() string {
	return s.URL
}

func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	feed, err := rss.FetchByClient(s.URL, s.client(ctx))
	if err != nil {
		return nil, err
	}

	return lo.Map(feed.Items, func(item *rss.Item, _ int) model.Item {
		return model.Item{
			Title:      strings.TrimSpace(item.Title),
			Categories: item.Categories,
			Link:       item.Link,
			Date:       item.Date,
			Content:    itemText(item),
			SourceName: feed.Title,
		}
	}), nil
}

// itemText returns the richest available text for an item.
// Content (full body) is preferred over Summary (short excerpt).
func itemText(item *rss.Item) string {
	if c := strings.TrimSpace(item.Content); c != "" {
		return c
	}
	return strings.TrimSpace(item.Summary)
}

func (s RSSSource) client(ctx context.Context) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = s.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second

	return &http.Client{
		Transport: contextTransport{ctx: ctx, base: &retryablehttp.RoundTripper{Client: retryClient}},
		Timeout:   fetchTimeout,
	}
}
