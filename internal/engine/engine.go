// Package engine owns the canonical reorder list. Every mutation funnels
// through a single internal queue so that two rapid scans of the same item
// cannot race on read-modify-write, and listener callbacks only fire after
// the local write is durable.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fernwood/restock/internal/model"
	"github.com/fernwood/restock/internal/resolver"
	"github.com/fernwood/restock/internal/store"
)

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("engine closed")

// Team-data cache lifetimes. A negative-cache row (empty vendor) expires
// quickly so a record entered later shows up without a restart.
const (
	teamDataTTL         = time.Hour
	teamDataNegativeTTL = 5 * time.Minute
)

// RemoteClient is the multi-device list service.
type RemoteClient interface {
	PullList(ctx context.Context, userID string) ([]model.ReorderEntry, error)
	PushEntry(ctx context.Context, userID string, entry *model.ReorderEntry) error
	DeleteEntry(ctx context.Context, userID, entryID string) error
}

// TeamDataFetcher is the remote team-data service.
type TeamDataFetcher interface {
	Fetch(ctx context.Context, itemID string) (*model.TeamData, error)
}

// Identity supplies acting-user attribution and connectivity flags.
type Identity interface {
	UserID() string
	DisplayName() string
	IsAuthenticated() bool
	IsOnline() bool
	SetOnline(online bool)
}

// Listener receives the full resolved list after every durable mutation,
// local or remote-originated.
type Listener func(items []model.DisplayReorderItem)

// SyncStatus is a snapshot of the engine's connectivity and backlog.
type SyncStatus struct {
	IsOnline        bool `json:"is_online"`
	IsAuthenticated bool `json:"is_authenticated"`
	PendingCount    int  `json:"pending_count"`
}

type Engine struct {
	entries  *store.ReorderStore
	catalog  *store.CatalogStore
	teamData *store.TeamDataStore
	queue    *store.SyncQueueStore
	resolver *resolver.Resolver
	remote   RemoteClient
	teamSvc  TeamDataFetcher
	identity Identity
	logger   *slog.Logger

	ops  chan func()
	done chan struct{}
	once sync.Once

	mu             sync.RWMutex
	userID         string
	listeners      map[int]Listener
	nextListenerID int

	syncer *syncer
}

func New(
	entries *store.ReorderStore,
	catalog *store.CatalogStore,
	teamData *store.TeamDataStore,
	queue *store.SyncQueueStore,
	res *resolver.Resolver,
	remote RemoteClient,
	teamSvc TeamDataFetcher,
	identity Identity,
	logger *slog.Logger,
) *Engine {
	e := &Engine{
		entries:   entries,
		catalog:   catalog,
		teamData:  teamData,
		queue:     queue,
		resolver:  res,
		remote:    remote,
		teamSvc:   teamSvc,
		identity:  identity,
		logger:    logger,
		ops:       make(chan func()),
		done:      make(chan struct{}),
		listeners: make(map[int]Listener),
	}
	e.syncer = newSyncer(e)
	go e.run()
	go e.syncer.run()
	return e
}

// run applies queued operations one at a time. Channel FIFO order gives the
// spec's same-item ordering guarantee for free.
func (e *Engine) run() {
	for {
		select {
		case fn := <-e.ops:
			fn()
		case <-e.done:
			return
		}
	}
}

// Close stops the mutation worker and the sync worker. In-flight operations
// complete; later calls return ErrClosed.
func (e *Engine) Close() {
	e.once.Do(func() { close(e.done) })
}

// do runs fn on the mutation worker and waits for it.
func (e *Engine) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case e.ops <- func() { errCh <- fn() }:
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errCh:
		return err
	case <-e.done:
		return ErrClosed
	}
}

// AddListener registers a callback and returns its unsubscribe function.
// Multiple listeners are supported with no ordering guarantee between them.
func (e *Engine) AddListener(l Listener) func() {
	e.mu.Lock()
	id := e.nextListenerID
	e.nextListenerID++
	e.listeners[id] = l
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// notify resolves the current list and fans it out. Called on the mutation
// worker after the local write committed, so a crash right after a listener
// fires cannot lose what the listener observed.
func (e *Engine) notify() {
	items := e.resolveAll()
	e.mu.RLock()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.RUnlock()

	for _, l := range listeners {
		l(items)
	}
}

func (e *Engine) resolveAll() []model.DisplayReorderItem {
	entries, err := e.entries.ListAll()
	if err != nil {
		e.logger.Error("list entries", "error", err)
		return nil
	}
	return e.resolver.Resolve(entries)
}

// GetItems forces a synchronous resolve-and-return through the mutation
// queue, so it observes every mutation issued before it.
func (e *Engine) GetItems(ctx context.Context) ([]model.DisplayReorderItem, error) {
	var items []model.DisplayReorderItem
	err := e.do(ctx, func() error {
		items = e.resolveAll()
		return nil
	})
	return items, err
}

// GetSyncStatus reports connectivity flags and the sync queue depth.
func (e *Engine) GetSyncStatus() SyncStatus {
	count, err := e.queue.Count()
	if err != nil {
		e.logger.Warn("count pending ops", "error", err)
	}
	return SyncStatus{
		IsOnline:        e.identity.IsOnline(),
		IsAuthenticated: e.identity.IsAuthenticated(),
		PendingCount:    count,
	}
}

// FetchTeamData is a read-through cache: local store first, then the remote
// service on miss or expiry. Misses are cached too (negative caching) so a
// flaky service isn't hammered by every render.
func (e *Engine) FetchTeamData(ctx context.Context, itemID string) (*model.TeamData, error) {
	cached, err := e.teamData.Get(itemID)
	if err != nil {
		e.logger.Warn("team data cache read", "item_id", itemID, "error", err)
	}
	if cached != nil {
		ttl := teamDataTTL
		if cached.Vendor == "" {
			ttl = teamDataNegativeTTL
		}
		if time.Since(cached.FetchedAt) < ttl {
			if cached.Vendor == "" {
				return nil, nil
			}
			return cached, nil
		}
	}

	td, err := e.teamSvc.Fetch(ctx, itemID)
	if err != nil {
		e.identity.SetOnline(false)
		// Serve stale data over nothing.
		if cached != nil && cached.Vendor != "" {
			return cached, nil
		}
		return nil, err
	}
	e.identity.SetOnline(true)

	if td == nil {
		neg := &model.TeamData{ItemID: itemID, FetchedAt: time.Now().UTC()}
		if err := e.teamData.Upsert(neg); err != nil {
			e.logger.Warn("cache negative team data", "item_id", itemID, "error", err)
		}
		return nil, nil
	}

	if err := e.teamData.Upsert(td); err != nil {
		e.logger.Warn("cache team data", "item_id", itemID, "error", err)
	}
	return td, nil
}
