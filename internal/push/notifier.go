package push

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/fernwood/restock/internal/model"
	"github.com/fernwood/restock/internal/store"
)

// Notifier watches the resolved list for entries newly marked received and
// notifies paired devices. It plugs into the engine as a listener.
type Notifier struct {
	svc      *Service
	subs     *store.PushStore
	logger   *slog.Logger
	received map[string]bool // entry id -> already announced
}

func NewNotifier(svc *Service, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		svc:      svc,
		subs:     subs,
		logger:   logger,
		received: make(map[string]bool),
	}
}

// OnListChanged is the engine listener. The engine serializes listener
// calls, so the received map needs no locking.
func (n *Notifier) OnListChanged(items []model.DisplayReorderItem) {
	seen := make(map[string]bool, len(items))
	for i := range items {
		it := &items[i]
		seen[it.ID] = true
		if !it.Received || n.received[it.ID] {
			continue
		}
		n.received[it.ID] = true
		n.announce(it)
	}
	// Forget deleted entries so the map doesn't grow forever.
	for id := range n.received {
		if !seen[id] {
			delete(n.received, id)
		}
	}
}

func (n *Notifier) announce(it *model.DisplayReorderItem) {
	subs, err := n.subs.List()
	if err != nil {
		n.logger.Error("list push subscriptions", "error", err)
		return
	}

	payload := Payload{
		Title: "Item restocked",
		Body:  fmt.Sprintf("%s marked as received by %s", it.ItemName, it.LastModifiedBy),
		Tag:   "received-" + it.ID,
	}

	for i := range subs {
		sub := &subs[i]
		if err := n.svc.Send(sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if derr := n.subs.Delete(sub.ID); derr != nil {
					n.logger.Error("delete expired subscription", "id", sub.ID, "error", derr)
				}
				continue
			}
			n.logger.Warn("send push", "id", sub.ID, "error", err)
		}
	}
}
