package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DefaultRSSURL is the Yahoo Finance headline feed. {symbol} is replaced by
// the ticker.
const DefaultRSSURL = "https://feeds.finance.yahoo.com/rss/2.0/headline?s={symbol}&region=US&lang=en-US"

// RSSSource reads headlines from an RSS 2.0 feed.
type RSSSource struct {
	urlTemplate string
	httpClient  *http.Client
}

// NewRSSSource creates an RSS source. An empty template uses DefaultRSSURL.
func NewRSSSource(urlTemplate string, client *http.Client) *RSSSource {
	if urlTemplate == "" {
		urlTemplate = DefaultRSSURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RSSSource{urlTemplate: urlTemplate, httpClient: client}
}

// Name returns the source identifier.
func (r *RSSSource) Name() string {
	return "rss"
}

// Available always returns true; feeds need no credentials.
func (r *RSSSource) Available() bool {
	return true
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Search returns the newest limit items of the feed.
func (r *RSSSource) Search(ctx context.Context, symbol string, limit int) ([]Document, error) {
	feedURL := strings.ReplaceAll(r.urlTemplate, "{symbol}", url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "TraderAI/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("RSS feed error: status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	docs := make([]Document, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		content := strings.TrimSpace(html.UnescapeString(htmlTag.ReplaceAllString(item.Description, "")))
		if content == "" {
			content = strings.TrimSpace(item.Title)
		}
		if content == "" {
			continue
		}
		docs = append(docs, Document{
			Title:     strings.TrimSpace(item.Title),
			URL:       strings.TrimSpace(item.Link),
			Content:   content,
			Source:    "rss",
			Published: parsePublished(item.PubDate),
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Published.After(docs[j].Published)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

var publishedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parsePublished(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
