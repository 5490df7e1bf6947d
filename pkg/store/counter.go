package store

import (
	"context"
	"path/filepath"
	"sync"
	"time"
)

// ActionsFile is the action counter file name inside the data directory.
const ActionsFile = "actions_today.json"

type actionsDoc struct {
	Date    string         `json:"date"`
	Actions map[string]int `json:"actions"`
}

// ActionCounter stores how many actions each symbol used today. Counts reset
// when the UTC date changes.
type ActionCounter struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewActionCounter creates a counter stored in dir.
func NewActionCounter(dir string) *ActionCounter {
	return &ActionCounter{path: filepath.Join(dir, ActionsFile), now: time.Now}
}

func (c *ActionCounter) today() string {
	return c.now().UTC().Format("2006-01-02")
}

// Load returns today's counts. A missing file, or one from a previous day,
// yields an empty map.
func (c *ActionCounter) Load(ctx context.Context) (map[string]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var doc actionsDoc
	if _, err := readJSON(c.path, &doc); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(doc.Actions))
	if doc.Date != c.today() {
		return counts, nil
	}
	for sym, n := range doc.Actions {
		counts[sym] = n
	}
	return counts, nil
}

// Save writes counts under today's date.
func (c *ActionCounter) Save(ctx context.Context, counts map[string]int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := actionsDoc{Date: c.today(), Actions: counts}
	if doc.Actions == nil {
		doc.Actions = map[string]int{}
	}
	return writeJSON(c.path, doc)
}
