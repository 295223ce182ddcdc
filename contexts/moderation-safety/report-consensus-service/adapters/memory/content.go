package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
)

// ContentStore is an in-memory owning store for posts, skills or knowledge
// entries, keyed by id with the display label as value.
type ContentStore struct {
	mu        sync.RWMutex
	items     map[string]string
	deleteErr error
	deletes   int
}

func NewContentStore(seed map[string]string) *ContentStore {
	items := make(map[string]string, len(seed))
	for id, label := range seed {
		items[strings.TrimSpace(id)] = label
	}
	return &ContentStore{items: items}
}

func (c *ContentStore) Put(id string, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[strings.TrimSpace(id)] = label
}

// FailDeletes makes every subsequent Delete return err. A nil err restores
// normal behaviour.
func (c *ContentStore) FailDeletes(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteErr = err
}

func (c *ContentStore) Exists(_ context.Context, id string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[strings.TrimSpace(id)]
	return ok, nil
}

func (c *ContentStore) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deletes++
	delete(c.items, strings.TrimSpace(id))
	return nil
}

func (c *ContentStore) Label(_ context.Context, id string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	label, ok := c.items[strings.TrimSpace(id)]
	if !ok {
		return "", domainerrors.ErrTargetNotFound
	}
	return label, nil
}

// Deletes counts successful Delete calls.
func (c *ContentStore) Deletes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deletes
}

type Announcement struct {
	AuthorID    string
	Text        string
	Kind        string
	PublishedAt time.Time
}

// Feed records announcements instead of posting them.
type Feed struct {
	mu         sync.RWMutex
	posts      []Announcement
	publishErr error
}

func NewFeed() *Feed {
	return &Feed{}
}

func (f *Feed) FailPublishes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishErr = err
}

func (f *Feed) Publish(_ context.Context, authorID string, text string, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.posts = append(f.posts, Announcement{
		AuthorID:    authorID,
		Text:        text,
		Kind:        kind,
		PublishedAt: time.Now().UTC(),
	})
	return nil
}

func (f *Feed) Posts() []Announcement {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Announcement(nil), f.posts...)
}
