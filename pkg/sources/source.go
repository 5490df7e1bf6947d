// Package sources fetches the raw news, chart and portfolio text that the
// trading pipeline feeds to the summarizers.
package sources

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// documentSeparator joins documents into one context string.
const documentSeparator = "\n\n---\n\n"

// Document is one retrieved article.
type Document struct {
	Title     string
	URL       string
	Content   string
	Source    string
	Published time.Time
}

// String renders the document for a prompt.
func (d Document) String() string {
	var b strings.Builder
	if d.Title != "" {
		b.WriteString(d.Title)
		b.WriteString("\n")
	}
	if !d.Published.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", d.Published.UTC().Format("2006-01-02 15:04 MST"))
	}
	if d.URL != "" {
		fmt.Fprintf(&b, "Source: %s\n", d.URL)
	}
	b.WriteString(strings.TrimSpace(d.Content))
	return strings.TrimSpace(b.String())
}

// NewsSource searches one news backend.
type NewsSource interface {
	// Name returns the source identifier.
	Name() string

	// Search returns up to limit recent articles about symbol.
	Search(ctx context.Context, symbol string, limit int) ([]Document, error)

	// Available returns true if the source is configured.
	Available() bool
}

func joinDocuments(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if s := d.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, documentSeparator)
}
