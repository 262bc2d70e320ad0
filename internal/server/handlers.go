package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fernwood/restock/internal/model"
	"github.com/fernwood/restock/internal/scan"
	ws "github.com/fernwood/restock/internal/websocket"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// actingUser resolves who gets attribution for a mutation: an explicit
// acting_user from the request wins, otherwise the signed-in display name.
func (s *Server) actingUser(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		return requested
	}
	if name := s.identity.DisplayName(); name != "" {
		return name
	}
	return "device"
}

// --- Session ---

type sessionRequest struct {
	Token string `json:"token"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.identity.SetToken(req.Token); err != nil {
		errorJSON(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if err := s.engine.Initialize(r.Context(), s.identity.UserID()); err != nil {
		// The session is valid even if the first pull fails; sync catches up.
		s.logger.Warn("initial sync failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":      s.identity.UserID(),
		"display_name": s.identity.DisplayName(),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.identity.ClearToken()
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// --- Reorder list ---

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.GetItems(r.Context())
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	if r.URL.Query().Get("filter") == "active" {
		active := items[:0]
		for _, it := range items {
			if !it.Received {
				active = append(active, it)
			}
		}
		items = active
	}
	if items == nil {
		items = []model.DisplayReorderItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type addItemRequest struct {
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
	Overwrite  bool   `json:"overwrite"`
	ActingUser string `json:"acting_user"`
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ItemID == "" || req.Quantity < 0 {
		errorJSON(w, http.StatusBadRequest, "item_id and non-negative quantity required")
		return
	}

	item, err := s.catalogStore.GetItemByID(req.ItemID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "catalog lookup failed")
		return
	}
	if item == nil {
		errorJSON(w, http.StatusNotFound, "unknown catalog item")
		return
	}

	// Best-effort snapshot; a missing record just leaves the entry unsnapshotted.
	snapshot, err := s.engine.FetchTeamData(r.Context(), item.ID)
	if err != nil {
		s.logger.Warn("team data snapshot", "item_id", item.ID, "error", err)
	}

	if !s.engine.AddItem(r.Context(), item, req.Quantity, snapshot, s.actingUser(req.ActingUser), req.Overwrite) {
		errorJSON(w, http.StatusInternalServerError, "failed to add item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type addCustomItemRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Quantity   int    `json:"quantity"`
	ActingUser string `json:"acting_user"`
}

func (s *Server) addCustomItem(w http.ResponseWriter, r *http.Request) {
	var req addCustomItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Quantity <= 0 {
		errorJSON(w, http.StatusBadRequest, "name and positive quantity required")
		return
	}

	if !s.engine.AddCustomItem(r.Context(), req.Name, req.Category, req.Quantity, s.actingUser(req.ActingUser)) {
		errorJSON(w, http.StatusInternalServerError, "failed to add custom item")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	if !s.engine.RemoveItem(r.Context(), r.PathValue("id")) {
		errorJSON(w, http.StatusInternalServerError, "failed to remove item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type attributedRequest struct {
	ActingUser string `json:"acting_user"`
}

func decodeActingUser(r *http.Request) string {
	var req attributedRequest
	// Body is optional on these endpoints.
	json.NewDecoder(r.Body).Decode(&req)
	return req.ActingUser
}

func (s *Server) markReceived(w http.ResponseWriter, r *http.Request) {
	user := s.actingUser(decodeActingUser(r))
	if !s.engine.MarkAsReceived(r.Context(), r.PathValue("id"), user) {
		errorJSON(w, http.StatusInternalServerError, "failed to mark as received")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) toggleCompletion(w http.ResponseWriter, r *http.Request) {
	user := s.actingUser(decodeActingUser(r))
	if !s.engine.ToggleCompletion(r.Context(), r.PathValue("id"), user) {
		errorJSON(w, http.StatusInternalServerError, "failed to toggle completion")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) moveToTop(w http.ResponseWriter, r *http.Request) {
	user := s.actingUser(decodeActingUser(r))
	if !s.engine.MoveItemToTop(r.Context(), r.PathValue("id"), nil, user) {
		errorJSON(w, http.StatusInternalServerError, "failed to move item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) clearList(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Clear(r.Context()) {
		errorJSON(w, http.StatusInternalServerError, "failed to clear list")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Scanning ---

type scanRequest struct {
	Barcode    string `json:"barcode"`
	ActingUser string `json:"acting_user"`
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Barcode == "" {
		errorJSON(w, http.StatusBadRequest, "barcode required")
		return
	}

	result, err := s.engine.HandleScan(r.Context(), req.Barcode, s.actingUser(req.ActingUser))
	switch {
	case errors.Is(err, scan.ErrNotFound):
		errorJSON(w, http.StatusNotFound, "barcode not in catalog")
	case errors.Is(err, scan.ErrAmbiguous):
		// Nothing mutated; the client picks from candidates and calls apply.
		writeJSON(w, http.StatusConflict, result)
	case err != nil:
		errorJSON(w, http.StatusInternalServerError, "scan failed")
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

type applyScanRequest struct {
	ItemID     string `json:"item_id"`
	ActingUser string `json:"acting_user"`
}

func (s *Server) applyScan(w http.ResponseWriter, r *http.Request) {
	var req applyScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	item, err := s.catalogStore.GetItemByID(req.ItemID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "catalog lookup failed")
		return
	}
	if item == nil {
		errorJSON(w, http.StatusNotFound, "unknown catalog item")
		return
	}

	result, err := s.engine.ApplyScan(r.Context(), item, s.actingUser(req.ActingUser))
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Sync ---

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetSyncStatus())
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Refresh(r.Context()); err != nil {
		errorJSON(w, http.StatusBadGateway, "refresh failed")
		return
	}

	status := s.engine.GetSyncStatus()
	s.hub.Broadcast(ws.SyncStatusChanged(map[string]any{
		"is_online":        status.IsOnline,
		"is_authenticated": status.IsAuthenticated,
		"pending_count":    status.PendingCount,
	}))
	writeJSON(w, http.StatusOK, status)
}

// --- Catalog + team data ---

func (s *Server) searchCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		errorJSON(w, http.StatusBadRequest, "q required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := s.catalogStore.Search(query, limit)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "search failed")
		return
	}
	if items == nil {
		items = []model.CatalogItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalogStore.ListCategories()
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []model.CatalogCategory{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) getTeamData(w http.ResponseWriter, r *http.Request) {
	td, err := s.engine.FetchTeamData(r.Context(), r.PathValue("item_id"))
	if err != nil {
		errorJSON(w, http.StatusBadGateway, "team data service unavailable")
		return
	}
	if td == nil {
		errorJSON(w, http.StatusNotFound, "no team data for item")
		return
	}
	writeJSON(w, http.StatusOK, td)
}

// --- Push notifications ---

type pushSubscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

func (s *Server) pushSubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushSubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		errorJSON(w, http.StatusBadRequest, "endpoint, p256dh, and auth required")
		return
	}

	sub, err := s.pushStore.Create(req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) pushList(w http.ResponseWriter, r *http.Request) {
	subs, err := s.pushStore.List()
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) pushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.pushStore.Delete(id); err != nil {
		errorJSON(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) pushVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": s.pushService.VAPIDPublicKey()})
}

// --- Backups ---

func (s *Server) listBackups(w http.ResponseWriter, r *http.Request) {
	records, err := s.backupStore.List(50)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if records == nil {
		records = []model.BackupRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) backupStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backupManager.Status())
}

func (s *Server) runBackup(w http.ResponseWriter, r *http.Request) {
	id, err := s.backupManager.RunNow(r.Context())
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"backup_id": id})
}

func (s *Server) restoreBackup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.backupManager.Restore(r.Context(), id); err != nil {
		errorJSON(w, http.StatusInternalServerError, "restore failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored, restart required"})
}
