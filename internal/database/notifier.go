package database

import "sync"

// Table names published on the Notifier after a commit touches them.
const (
	TableObservations    = "observations"
	TableTags            = "tags"
	TableAttachments     = "attachments"
	TableObservationTags = "observation_tags"
)

// AllTables lists every table of the schema.
var AllTables = []string{TableObservations, TableTags, TableAttachments, TableObservationTags}

// Notifier fans out table-change signals to subscribers. Signals coalesce: a
// subscriber that has not drained its channel yet sees one pending signal.
type Notifier struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	next   uint64
	closed bool
}

type subscription struct {
	tables map[string]struct{}
	ch     chan struct{}
	once   sync.Once
}

func NewNotifier() *Notifier {
	return &Notifier{subs: map[uint64]*subscription{}}
}

// Subscribe returns a channel signalled whenever one of tables changes (any
// table when none are given) and a cancel function that closes it.
func (n *Notifier) Subscribe(tables ...string) (<-chan struct{}, func()) {
	sub := &subscription{ch: make(chan struct{}, 1)}
	if len(tables) > 0 {
		sub.tables = make(map[string]struct{}, len(tables))
		for _, t := range tables {
			sub.tables[t] = struct{}{}
		}
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := n.next
	n.next++
	n.subs[id] = sub
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
	}
	return sub.ch, cancel
}

// Publish signals every subscriber interested in any of tables.
func (n *Notifier) Publish(tables ...string) {
	if len(tables) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		if !sub.matches(tables) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Close ends every subscription.
func (n *Notifier) Close() {
	n.mu.Lock()
	subs := n.subs
	n.subs = map[uint64]*subscription{}
	n.closed = true
	n.mu.Unlock()
	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (s *subscription) matches(tables []string) bool {
	if s.tables == nil {
		return true
	}
	for _, t := range tables {
		if _, ok := s.tables[t]; ok {
			return true
		}
	}
	return false
}
