package live

import (
	"context"
	"sync"
)

// Page is the loaded prefix of a paginated result.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// PageLoader returns at most limit items starting at offset.
type PageLoader[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// Paged is a live query over a growing prefix of an ordered result. Every
// re-evaluation reloads the whole prefix, so inserts before the end of the
// window show up in place.
type Paged[T any] struct {
	*Query[Page[T]]
	pageSize int

	mu     sync.Mutex
	window int
}

// NewPaged builds a paged query that starts with one page loaded.
func NewPaged[T any](source Source, pageSize int, load PageLoader[T], tables ...string) *Paged[T] {
	if pageSize <= 0 {
		pageSize = 1
	}
	p := &Paged[T]{pageSize: pageSize, window: pageSize}
	p.Query = New[Page[T]](source, func(ctx context.Context) (Page[T], error) {
		window := p.Window()
		// One extra row tells whether another page exists.
		items, err := load(ctx, window+1, 0)
		if err != nil {
			return Page[T]{}, err
		}
		page := Page[T]{Items: items}
		if len(items) > window {
			page.Items = items[:window]
			page.HasMore = true
		}
		return page, nil
	}, tables...)
	return p
}

// LoadMore grows the window by one page and re-evaluates.
func (p *Paged[T]) LoadMore() {
	p.mu.Lock()
	p.window += p.pageSize
	p.mu.Unlock()
	p.Refresh()
}

// Window is the number of items currently requested.
func (p *Paged[T]) Window() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window
}

func (p *Paged[T]) PageSize() int {
	return p.pageSize
}
