package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fernwood/restock/internal/database"
	"github.com/fernwood/restock/internal/model"
	"github.com/fernwood/restock/internal/remote"
	"github.com/fernwood/restock/internal/resolver"
	"github.com/fernwood/restock/internal/store"
)

type fakeRemote struct {
	mu      sync.Mutex
	list    []model.ReorderEntry
	pushed  []model.ReorderEntry
	deleted []string
	pullErr error
	pushErr error
}

func (f *fakeRemote) PullList(ctx context.Context, userID string) ([]model.ReorderEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	out := make([]model.ReorderEntry, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakeRemote) PushEntry(ctx context.Context, userID string, entry *model.ReorderEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, *entry)
	return nil
}

func (f *fakeRemote) DeleteEntry(ctx context.Context, userID, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.deleted = append(f.deleted, entryID)
	return nil
}

func (f *fakeRemote) pushedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

type fakeTeamService struct {
	mu      sync.Mutex
	records map[string]*model.TeamData
	err     error
	calls   int
}

func (f *fakeTeamService) Fetch(ctx context.Context, itemID string) (*model.TeamData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	td := f.records[itemID]
	if td == nil {
		return nil, nil
	}
	cp := *td
	cp.FetchedAt = time.Now().UTC()
	return &cp, nil
}

type fakeIdentity struct {
	mu     sync.Mutex
	user   string
	name   string
	authed bool
	online bool
}

func (f *fakeIdentity) UserID() string      { f.mu.Lock(); defer f.mu.Unlock(); return f.user }
func (f *fakeIdentity) DisplayName() string { f.mu.Lock(); defer f.mu.Unlock(); return f.name }
func (f *fakeIdentity) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authed
}
func (f *fakeIdentity) IsOnline() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.online }
func (f *fakeIdentity) SetOnline(online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = online
}

type testEnv struct {
	engine   *Engine
	entries  *store.ReorderStore
	catalog  *store.CatalogStore
	queue    *store.SyncQueueStore
	teamData *store.TeamDataStore
	remote   *fakeRemote
	teamSvc  *fakeTeamService
	identity *fakeIdentity
}

func setupEngine(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	entries := store.NewReorderStore(db)
	catalog := store.NewCatalogStore(db)
	teamData := store.NewTeamDataStore(db)
	queue := store.NewSyncQueueStore(db)
	res := resolver.New(catalog, teamData, logger)

	rem := &fakeRemote{}
	teamSvc := &fakeTeamService{records: map[string]*model.TeamData{}}
	id := &fakeIdentity{user: "user-1", name: "Alice"}

	eng := New(entries, catalog, teamData, queue, res, rem, teamSvc, id, logger)
	t.Cleanup(eng.Close)

	return &testEnv{
		engine:   eng,
		entries:  entries,
		catalog:  catalog,
		queue:    queue,
		teamData: teamData,
		remote:   rem,
		teamSvc:  teamSvc,
		identity: id,
	}
}

func (env *testEnv) seedCatalog(t *testing.T, id, name, barcode string) *model.CatalogItem {
	t.Helper()
	it := &model.CatalogItem{ID: id, Name: name, Barcode: barcode, Price: 100, Category: "Grocery", UpdatedAt: time.Now().UTC()}
	if err := env.catalog.UpsertItem(it); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return it
}

func (env *testEnv) activeItems(t *testing.T) []model.DisplayReorderItem {
	t.Helper()
	items, err := env.engine.GetItems(context.Background())
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	var active []model.DisplayReorderItem
	for _, it := range items {
		if !it.Received {
			active = append(active, it)
		}
	}
	return active
}

func TestAddItemCreatesEntry(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")

	if !env.engine.AddItem(context.Background(), item, 2, nil, "Alice", false) {
		t.Fatal("add item failed")
	}

	items := env.activeItems(t)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Quantity != 2 || items[0].AddedBy != "Alice" {
		t.Errorf("entry = %+v", items[0].ReorderEntry)
	}
}

func TestAddItemIsAdditiveWithoutOverwrite(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")

	env.engine.AddItem(context.Background(), item, 2, nil, "Alice", false)
	env.engine.AddItem(context.Background(), item, 3, nil, "Bob", false)

	items := env.activeItems(t)
	if len(items) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(items))
	}
	if items[0].Quantity != 5 {
		t.Errorf("quantity = %d, want 5", items[0].Quantity)
	}
	if items[0].LastModifiedBy != "Bob" || items[0].AddedBy != "Alice" {
		t.Errorf("attribution = added %q, modified %q", items[0].AddedBy, items[0].LastModifiedBy)
	}
}

func TestAddItemOverwriteReplacesQuantity(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")

	env.engine.AddItem(context.Background(), item, 2, nil, "Alice", false)
	env.engine.AddItem(context.Background(), item, 7, nil, "Alice", true)

	items := env.activeItems(t)
	if items[0].Quantity != 7 {
		t.Errorf("quantity = %d, want 7", items[0].Quantity)
	}

	// Overwriting with the same value is idempotent.
	env.engine.AddItem(context.Background(), item, 7, nil, "Alice", true)
	items = env.activeItems(t)
	if len(items) != 1 || items[0].Quantity != 7 {
		t.Errorf("after idempotent overwrite: %+v", items)
	}
}

func TestAddItemOverwriteZeroDeletes(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")

	env.engine.AddItem(context.Background(), item, 2, nil, "Alice", false)
	env.engine.AddItem(context.Background(), item, 0, nil, "Alice", true)

	if items := env.activeItems(t); len(items) != 0 {
		t.Errorf("quantity 0 must delete, got %+v", items)
	}

	ops, _ := env.queue.Pending()
	if len(ops) != 1 || ops[0].Kind != model.SyncOpDelete {
		t.Errorf("expected a single delete op, got %+v", ops)
	}
}

func TestAddItemZeroOnMissingEntryIsNoop(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")

	if !env.engine.AddItem(context.Background(), item, 0, nil, "Alice", true) {
		t.Fatal("zero-quantity overwrite of nothing should succeed as a no-op")
	}
	if items := env.activeItems(t); len(items) != 0 {
		t.Errorf("no entry should exist, got %+v", items)
	}
	count, _ := env.queue.Count()
	if count != 0 {
		t.Errorf("no-op must not queue anything, got %d ops", count)
	}
}

func TestAddCustomItem(t *testing.T) {
	env := setupEngine(t)

	if !env.engine.AddCustomItem(context.Background(), "Window Cleaner", "", 1, "Alice") {
		t.Fatal("add custom failed")
	}

	items := env.activeItems(t)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if !items[0].IsCustom || items[0].ItemName != "Window Cleaner" {
		t.Errorf("entry = %+v", items[0])
	}
	if items[0].ItemCategory == "" {
		t.Error("empty category should have been auto-filled")
	}
	if items[0].MissingCatalogData || items[0].MissingTeamData {
		t.Error("custom entries are never flagged missing")
	}
}

func TestScanLifecycle(t *testing.T) {
	env := setupEngine(t)
	env.seedCatalog(t, "iA", "Item A", "a")
	env.seedCatalog(t, "iB", "Item B", "b")
	ctx := context.Background()

	// First scan of A creates it.
	res, err := env.engine.HandleScan(ctx, "a", "Alice")
	if err != nil {
		t.Fatalf("scan a: %v", err)
	}
	if res.Action.String() != "create" {
		t.Errorf("action = %v, want create", res.Action)
	}

	// A is at the top; scanning again increments.
	res, _ = env.engine.HandleScan(ctx, "a", "Alice")
	if res.Action.String() != "increment" {
		t.Errorf("action = %v, want increment", res.Action)
	}
	if res.Entry.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", res.Entry.Quantity)
	}

	// B takes the top.
	env.engine.HandleScan(ctx, "b", "Alice")

	// A is no longer top: scan moves it, quantity unchanged.
	res, _ = env.engine.HandleScan(ctx, "a", "Alice")
	if res.Action.String() != "move_to_top" {
		t.Errorf("action = %v, want move_to_top", res.Action)
	}
	if res.Entry.Quantity != 2 {
		t.Errorf("move must not change quantity, got %d", res.Entry.Quantity)
	}

	// And now A is top again, so the next scan increments.
	res, _ = env.engine.HandleScan(ctx, "a", "Alice")
	if res.Action.String() != "increment" || res.Entry.Quantity != 3 {
		t.Errorf("action = %v qty = %d, want increment 3", res.Action, res.Entry.Quantity)
	}
}

func TestScanCompleteRescan(t *testing.T) {
	env := setupEngine(t)
	env.seedCatalog(t, "iA", "Item A", "a")
	ctx := context.Background()

	first, _ := env.engine.HandleScan(ctx, "a", "Alice")
	env.engine.ToggleCompletion(ctx, first.Entry.ID, "Alice")

	res, err := env.engine.HandleScan(ctx, "a", "Bob")
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if res.Action.String() != "complete_rescan" {
		t.Errorf("action = %v, want complete_rescan", res.Action)
	}
	if res.Entry.ID == first.Entry.ID {
		t.Error("rescan must create a fresh entry")
	}
	if res.Entry.Quantity != 1 {
		t.Errorf("fresh entry quantity = %d, want 1", res.Entry.Quantity)
	}

	old, _ := env.entries.Get(first.Entry.ID)
	if old == nil || !old.Received {
		t.Errorf("old entry should be received history: %+v", old)
	}
}

func TestScanUnknownBarcode(t *testing.T) {
	env := setupEngine(t)

	_, err := env.engine.HandleScan(context.Background(), "nope", "Alice")
	if err == nil {
		t.Fatal("expected error for unknown barcode")
	}
	if items := env.activeItems(t); len(items) != 0 {
		t.Errorf("unknown barcode must not create entries: %+v", items)
	}
}

func TestScanAmbiguousBarcode(t *testing.T) {
	env := setupEngine(t)
	env.seedCatalog(t, "i1", "Water 12pk", "dup")
	env.seedCatalog(t, "i2", "Water 24pk", "dup")

	res, err := env.engine.HandleScan(context.Background(), "dup", "Alice")
	if err == nil {
		t.Fatal("expected ambiguity error")
	}
	if len(res.Candidates) != 2 {
		t.Errorf("candidates = %+v", res.Candidates)
	}
	if items := env.activeItems(t); len(items) != 0 {
		t.Errorf("ambiguous scan must not mutate: %+v", items)
	}

	// Disambiguate.
	item, _ := env.catalog.GetItemByID("i1")
	applied, err := env.engine.ApplyScan(context.Background(), item, "Alice")
	if err != nil {
		t.Fatalf("apply scan: %v", err)
	}
	if applied.Action.String() != "create" {
		t.Errorf("action = %v, want create", applied.Action)
	}
}

func TestMarkAsReceivedKeepsHistory(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	env.engine.AddItem(ctx, item, 1, nil, "Alice", false)
	items := env.activeItems(t)

	env.engine.MarkAsReceived(ctx, items[0].ID, "Bob")

	if active := env.activeItems(t); len(active) != 0 {
		t.Errorf("received entry still active: %+v", active)
	}
	all, _ := env.engine.GetItems(ctx)
	if len(all) != 1 || !all[0].Received || all[0].LastModifiedBy != "Bob" {
		t.Errorf("history = %+v", all)
	}
}

func TestListenerFiresAfterDurableWrite(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")

	var mu sync.Mutex
	var observed []model.DisplayReorderItem
	unsubscribe := env.engine.AddListener(func(items []model.DisplayReorderItem) {
		mu.Lock()
		defer mu.Unlock()
		observed = items
	})
	defer unsubscribe()

	env.engine.AddItem(context.Background(), item, 1, nil, "Alice", false)

	mu.Lock()
	got := observed
	mu.Unlock()
	if len(got) != 1 || got[0].ItemName != "Beans" {
		t.Fatalf("listener observed %+v", got)
	}

	// What the listener saw must already be on disk.
	stored, _ := env.entries.Get(got[0].ID)
	if stored == nil {
		t.Fatal("listener fired before the write was durable")
	}
}

func TestUnsubscribeStopsListener(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")

	var mu sync.Mutex
	calls := 0
	unsubscribe := env.engine.AddListener(func([]model.DisplayReorderItem) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	unsubscribe()

	env.engine.AddItem(context.Background(), item, 1, nil, "Alice", false)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("unsubscribed listener fired %d times", calls)
	}
}

func TestOfflineMutationsQueue(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	// Unauthenticated: nothing drains, everything persists locally.
	env.engine.AddItem(ctx, item, 1, nil, "Alice", false)
	env.engine.AddCustomItem(ctx, "Tape", "Supplies", 1, "Alice")

	if items := env.activeItems(t); len(items) != 2 {
		t.Fatalf("local-only mode should persist, got %d items", len(items))
	}

	status := env.engine.GetSyncStatus()
	if status.PendingCount != 2 {
		t.Errorf("pending = %d, want 2", status.PendingCount)
	}
	if status.IsAuthenticated {
		t.Error("fake identity is not authenticated")
	}
}

// waitFor polls cond until it holds or the deadline passes. Drains run on a
// background goroutine, so queue-state assertions are eventual.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDrainPushesInOrder(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	env.engine.AddItem(ctx, item, 1, nil, "Alice", false)
	env.engine.AddCustomItem(ctx, "Tape", "Supplies", 1, "Alice")

	env.engine.syncer.drain(ctx)

	waitFor(t, func() bool {
		count, _ := env.queue.Count()
		return count == 0 && env.remote.pushedCount() == 2
	})
	if !env.identity.IsOnline() {
		t.Error("successful drain should mark online")
	}
}

func TestDrainStopsOnAuthFailure(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	env.remote.pushErr = remote.ErrUnauthorized
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	env.engine.AddItem(ctx, item, 1, nil, "Alice", false)

	env.engine.syncer.drain(ctx)

	waitFor(t, func() bool {
		ops, _ := env.queue.Pending()
		return len(ops) == 1 && ops[0].Attempts > 0
	})
}

func TestReconcileRemoteNewerWins(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	env.engine.AddItem(ctx, item, 1, nil, "Alice", false)
	local := env.activeItems(t)[0]

	remoteVersion := local.ReorderEntry
	remoteVersion.Quantity = 9
	remoteVersion.LastModifiedBy = "Bob"
	remoteVersion.UpdatedAt = local.UpdatedAt.Add(time.Hour)
	env.remote.mu.Lock()
	env.remote.list = []model.ReorderEntry{remoteVersion}
	env.remote.mu.Unlock()

	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	items := env.activeItems(t)
	if items[0].Quantity != 9 || items[0].LastModifiedBy != "Bob" {
		t.Errorf("remote-newer should win: %+v", items[0].ReorderEntry)
	}
}

func TestReconcileLocalNewerPreserved(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	env.engine.AddItem(ctx, item, 5, nil, "Alice", false)
	local := env.activeItems(t)[0]

	stale := local.ReorderEntry
	stale.Quantity = 1
	stale.UpdatedAt = local.UpdatedAt.Add(-time.Hour)
	env.remote.mu.Lock()
	env.remote.list = []model.ReorderEntry{stale}
	env.remote.mu.Unlock()

	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	items := env.activeItems(t)
	if items[0].Quantity != 5 {
		t.Errorf("local-newer should survive: %+v", items[0].ReorderEntry)
	}
}

func TestReconcileRemoteOnlyInserted(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	env.remote.mu.Lock()
	env.remote.list = []model.ReorderEntry{{
		ID: "r1", ItemID: "i1", Quantity: 3, Status: model.StatusIncomplete,
		AddedBy: "Bob", LastModifiedBy: "Bob", CreatedAt: now, UpdatedAt: now,
	}}
	env.remote.mu.Unlock()

	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, _ := env.entries.Get("r1")
	if got == nil || got.Quantity != 3 {
		t.Errorf("remote-only entry should be inserted: %+v", got)
	}
}

func TestReconcileLocalOnlyWithoutPendingDeleted(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	ctx := context.Background()

	// An entry that was already synced (no pending ops) but is gone from the
	// remote list was deleted on another device.
	now := time.Now().UTC().Truncate(time.Second)
	synced := &model.ReorderEntry{
		ID: "stale", ItemID: "i1", Quantity: 1, Status: model.StatusIncomplete,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := env.entries.Put(synced); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, _ := env.entries.Get("stale")
	if got != nil {
		t.Errorf("remotely-deleted entry should be removed: %+v", got)
	}
}

func TestReconcileLocalOnlyWithPendingPreserved(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	// Created offline, never pushed: the empty remote list must not eat it.
	env.remote.mu.Lock()
	env.remote.pushErr = remote.ErrUnauthorized
	env.remote.mu.Unlock()
	env.engine.AddItem(ctx, item, 2, nil, "Alice", false)

	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	items := env.activeItems(t)
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Errorf("unpushed local entry must survive reconcile: %+v", items)
	}
}

func TestReconcileRemoteZeroQuantityDeletes(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	synced := &model.ReorderEntry{
		ID: "e1", ItemID: "i1", Quantity: 2, Status: model.StatusIncomplete,
		CreatedAt: now, UpdatedAt: now,
	}
	env.entries.Put(synced)

	tombstone := *synced
	tombstone.Quantity = 0
	tombstone.UpdatedAt = now.Add(time.Hour)
	env.remote.mu.Lock()
	env.remote.list = []model.ReorderEntry{tombstone}
	env.remote.mu.Unlock()

	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, _ := env.entries.Get("e1")
	if got != nil {
		t.Errorf("remote quantity-0 is a deletion: %+v", got)
	}
}

func TestReconcileLocalDeleteNotResurrected(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	synced := &model.ReorderEntry{
		ID: "e1", ItemID: "i1", Quantity: 2, Status: model.StatusIncomplete,
		CreatedAt: now, UpdatedAt: now,
	}
	env.entries.Put(synced)

	// The delete push fails while the remote snapshot still carries the
	// entry; the local delete must stay visible until the push lands.
	env.remote.mu.Lock()
	env.remote.list = []model.ReorderEntry{*synced}
	env.remote.pushErr = remote.ErrUnauthorized
	env.remote.mu.Unlock()

	if !env.engine.RemoveItem(ctx, "e1") {
		t.Fatal("remove failed")
	}
	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, _ := env.entries.Get("e1")
	if got != nil {
		t.Errorf("locally-deleted entry reappeared after refresh: %+v", got)
	}
	pending, _ := env.queue.PendingDeleteFor("e1")
	if !pending {
		t.Error("queued delete should survive for retry")
	}
}

func TestInitializeUserSwitchResets(t *testing.T) {
	env := setupEngine(t)
	env.identity.authed = true
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	if err := env.engine.Initialize(ctx, "user-1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	env.engine.AddItem(ctx, item, 1, nil, "Alice", false)

	// Same user again: list untouched.
	if err := env.engine.Initialize(ctx, "user-1"); err != nil {
		t.Fatalf("re-initialize: %v", err)
	}
	if items := env.activeItems(t); len(items) != 1 {
		t.Fatalf("same-user init must be a no-op, got %d items", len(items))
	}

	// Different user: everything local is discarded.
	if err := env.engine.Initialize(ctx, "user-2"); err != nil {
		t.Fatalf("switch user: %v", err)
	}
	if items := env.activeItems(t); len(items) != 0 {
		t.Errorf("user switch must reset local state, got %+v", items)
	}
	count, _ := env.queue.Count()
	if count != 0 {
		t.Errorf("user switch must clear the queue, got %d ops", count)
	}
}

func TestFetchTeamDataCaches(t *testing.T) {
	env := setupEngine(t)
	env.teamSvc.records["i1"] = &model.TeamData{ItemID: "i1", Vendor: "Acme", CostCents: 700}
	ctx := context.Background()

	td, err := env.engine.FetchTeamData(ctx, "i1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if td == nil || td.Vendor != "Acme" {
		t.Fatalf("td = %+v", td)
	}

	// Second fetch inside the TTL hits the cache, not the service.
	env.engine.FetchTeamData(ctx, "i1")
	env.teamSvc.mu.Lock()
	calls := env.teamSvc.calls
	env.teamSvc.mu.Unlock()
	if calls != 1 {
		t.Errorf("service called %d times, want 1", calls)
	}
}

func TestFetchTeamDataNegativeCache(t *testing.T) {
	env := setupEngine(t)
	ctx := context.Background()

	td, err := env.engine.FetchTeamData(ctx, "unknown")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if td != nil {
		t.Fatalf("expected nil for unknown item, got %+v", td)
	}

	env.engine.FetchTeamData(ctx, "unknown")
	env.teamSvc.mu.Lock()
	calls := env.teamSvc.calls
	env.teamSvc.mu.Unlock()
	if calls != 1 {
		t.Errorf("negative result should be cached; service called %d times", calls)
	}
}

func TestFetchTeamDataServesStaleOnError(t *testing.T) {
	env := setupEngine(t)
	ctx := context.Background()

	// Seed an expired cache row directly.
	old := time.Now().UTC().Add(-2 * time.Hour)
	env.teamData.Upsert(&model.TeamData{ItemID: "i1", Vendor: "Acme", CostCents: 700, FetchedAt: old})

	env.teamSvc.mu.Lock()
	env.teamSvc.err = context.DeadlineExceeded
	env.teamSvc.mu.Unlock()

	td, err := env.engine.FetchTeamData(ctx, "i1")
	if err != nil {
		t.Fatalf("stale data should be served over an error, got %v", err)
	}
	if td == nil || td.Vendor != "Acme" {
		t.Errorf("td = %+v", td)
	}
	if env.identity.IsOnline() {
		t.Error("fetch failure should mark offline")
	}
}

func TestClearDeletesEverything(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")
	ctx := context.Background()

	env.engine.AddItem(ctx, item, 1, nil, "Alice", false)
	env.engine.AddCustomItem(ctx, "Tape", "Supplies", 1, "Alice")

	if !env.engine.Clear(ctx) {
		t.Fatal("clear failed")
	}
	all, _ := env.engine.GetItems(ctx)
	if len(all) != 0 {
		t.Errorf("list should be empty, got %+v", all)
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	env := setupEngine(t)
	item := env.seedCatalog(t, "i1", "Beans", "001")

	env.engine.Close()

	if env.engine.AddItem(context.Background(), item, 1, nil, "Alice", false) {
		t.Error("mutation after Close should fail")
	}
	if _, err := env.engine.GetItems(context.Background()); err == nil {
		t.Error("read after Close should fail")
	}
}
