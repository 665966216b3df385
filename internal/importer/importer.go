package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/0x0BSoD/constellation/internal/model"
	"github.com/0x0BSoD/constellation/internal/storage"
)

type PostStorage interface {
	Store(ctx context.Context, post model.Post) (string, error)
	ExistsByExternalURL(ctx context.Context, url string) (bool, error)
}

type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Item, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Reporter interface {
	Announce(post model.Post)
	Notify(msg string)
}

// Importer turns items of external feeds into posts. Items are matched by
// link, an item already imported is never stored twice.
type Importer struct {
	posts      PostStorage
	sources    []Source
	summarizer Summarizer
	reporter   Reporter

	interval     time.Duration
	skipKeywords []string

	mu      sync.Mutex
	claimed map[string]struct{}
}

// New returns an importer. summarizer and reporter may be nil.
func New(
	posts PostStorage,
	sources []Source,
	summarizer Summarizer,
	reporter Reporter,
	interval time.Duration,
	skipKeywords []string,
) *Importer {
	return &Importer{
		posts:      posts,
		sources:    sources,
		summarizer: summarizer,
		reporter:   reporter,
		interval:   interval,
		claimed:    make(map[string]struct{}),
		skipKeywords: lo.Map(skipKeywords, func(k string, _ int) string {
			return strings.ToLower(k)
		}),
	}
}

func (i *Importer) Start(ctx context.Context) error {
	log.Printf("[INFO] importer started, %d feeds every %s", len(i.sources), i.interval)

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	i.Import(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			i.Import(ctx)
		}
	}
}

// Import fetches all sources concurrently and returns the number of posts
// created. A failing source is logged and does not stop the others.
func (i *Importer) Import(ctx context.Context) int {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for _, src := range i.sources {
		wg.Add(1)

		go func(source Source) {
			defer wg.Done()

			items, err := source.Fetch(ctx)
			if err != nil {
				log.Printf("[ERROR] failed to fetch feed %s: %v", source.Name(), err)
				i.notify(fmt.Sprintf("failed to fetch feed %s: %v", source.Name(), err))
				return
			}

			n, err := i.processItems(ctx, items)
			mu.Lock()
			created += n
			mu.Unlock()
			if err != nil {
				log.Printf("[ERROR] failed to import items of %s: %v", source.Name(), err)
				i.notify(fmt.Sprintf("failed to import items of %s: %v", source.Name(), err))
			}
		}(src)
	}
	wg.Wait()

	return created
}

func (i *Importer) itemMustSkipped(item model.Item) bool {
	if item.Link == "" {
		return true
	}

	title := strings.ToLower(item.Title)
	categories := lo.Map(item.Categories, func(c string, _ int) string { return strings.ToLower(c) })

	return lo.SomeBy(i.skipKeywords, func(keyword string) bool {
		return strings.Contains(title, keyword) || lo.Contains(categories, keyword)
	})
}

func (i *Importer) processItems(ctx context.Context, items []model.Item) (int, error) {
	created := 0

	for _, item := range items {
		if i.itemMustSkipped(item) {
			continue
		}

		ok, err := i.importItem(ctx, item)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}

	return created, nil
}

// importItem stores item unless its link is already stored or is being
// imported by another feed right now.
func (i *Importer) importItem(ctx context.Context, item model.Item) (bool, error) {
	if !i.claim(item.Link) {
		return false, nil
	}
	defer i.release(item.Link)

	exists, err := i.posts.ExistsByExternalURL(ctx, item.Link)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	post := i.postFromItem(ctx, item)

	id, err := i.posts.Store(ctx, post)
	if errors.Is(err, storage.ErrDuplicatePost) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	post.ID = id

	log.Printf("[INFO] imported %q from %s", post.Title, item.SourceName)
	if i.reporter != nil {
		i.reporter.Announce(post)
	}

	return true, nil
}

func (i *Importer) claim(link string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, busy := i.claimed[link]; busy {
		return false
	}
	i.claimed[link] = struct{}{}
	return true
}

func (i *Importer) release(link string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.claimed, link)
}

func (i *Importer) postFromItem(ctx context.Context, item model.Item) model.Post {
	media := extractMedia(item.Content)

	content := plainText(item.Content)
	if i.summarizer != nil && content != "" {
		excerpt, err := i.summarizer.Summarize(ctx, content)
		if err != nil {
			log.Printf("[ERROR] failed to summarize %q: %v", item.Title, err)
		} else if excerpt != "" {
			content = excerpt
		}
	}

	createdAt := item.Date
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return model.Post{
		Title:       item.Title,
		Content:     content,
		CreatedAt:   createdAt,
		MediaURL:    media.Image,
		VideoURL:    media.Video,
		ExternalURL: item.Link,
		NewTab:      true,
	}
}

func (i *Importer) notify(msg string) {
	if i.reporter != nil {
		i.reporter.Notify(msg)
	}
}
