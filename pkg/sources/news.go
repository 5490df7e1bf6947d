package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/VAnkata19/TraderAI/pkg/task"
)

// NewsFeed tries each news source in order and returns the first non-empty
// set of articles as one context string.
type NewsFeed struct {
	sources     []NewsSource
	maxArticles int
}

// NewNewsFeed creates a feed over sources, most preferred first.
func NewNewsFeed(maxArticles int, sources ...NewsSource) *NewsFeed {
	if maxArticles <= 0 {
		maxArticles = 10
	}
	return &NewsFeed{sources: sources, maxArticles: maxArticles}
}

// NewsContext returns recent articles about symbol. An empty string with a
// nil error means every source answered but none had news.
func (f *NewsFeed) NewsContext(ctx context.Context, symbol string) (string, error) {
	var errs []error
	tried := 0
	for _, src := range f.sources {
		if !src.Available() {
			continue
		}
		tried++
		docs, err := src.Search(ctx, symbol, f.maxArticles)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(docs) > 0 {
			return joinDocuments(docs), nil
		}
	}

	if tried == 0 {
		return "", &task.ProviderError{Provider: "news", Op: "search", Err: errors.New("no news source configured")}
	}
	if len(errs) == tried {
		return "", &task.ProviderError{Provider: "news", Op: "search", Err: errors.Join(errs...)}
	}
	return "", nil
}
