// Package server wires the engine, stores, and background services behind
// the local HTTP+WebSocket API that paired devices talk to.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fernwood/restock/internal/backup"
	"github.com/fernwood/restock/internal/engine"
	"github.com/fernwood/restock/internal/identity"
	"github.com/fernwood/restock/internal/middleware"
	"github.com/fernwood/restock/internal/model"
	"github.com/fernwood/restock/internal/push"
	"github.com/fernwood/restock/internal/remote"
	"github.com/fernwood/restock/internal/resolver"
	"github.com/fernwood/restock/internal/store"
	"github.com/fernwood/restock/internal/teamdata"
	ws "github.com/fernwood/restock/internal/websocket"
)

// Config holds everything the server needs that isn't the database handle.
type Config struct {
	APIToken       string
	SigningKey     []byte
	ListServiceURL string
	TeamDataURL    string
	Backup         backup.Config
	Push           push.Config
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	engine        *engine.Engine
	identity      *identity.Provider
	catalogStore  *store.CatalogStore
	pushStore     *store.PushStore
	backupStore   *store.BackupStore
	backupManager *backup.Manager
	pushService   *push.Service
	rateLimiter   *middleware.RateLimiter
	apiToken      string
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	reorderStore := store.NewReorderStore(db)
	catalogStore := store.NewCatalogStore(db)
	teamDataStore := store.NewTeamDataStore(db)
	queueStore := store.NewSyncQueueStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	id := identity.NewProvider(cfg.SigningKey)
	remoteClient := remote.NewClient(remote.Config{BaseURL: cfg.ListServiceURL}, id)
	teamClient := teamdata.NewClient(teamdata.Config{BaseURL: cfg.TeamDataURL})
	res := resolver.New(catalogStore, teamDataStore, logger.With("component", "resolver"))

	eng := engine.New(
		reorderStore, catalogStore, teamDataStore, queueStore,
		res, remoteClient, teamClient, id,
		logger.With("component", "engine"),
	)

	// Every durable list change fans out to the connected screens.
	eng.AddListener(func(items []model.DisplayReorderItem) {
		hub.Broadcast(ws.ListUpdated(items))
	})

	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, func(st backup.Status) {
		hub.Broadcast(ws.Message{
			Type: "backup_status",
			Extra: map[string]any{
				"state":       string(st.State),
				"in_progress": st.InProgress,
				"error":       st.Error,
			},
		})
	}, logger.With("component", "backup"))

	var pushSvc *push.Service
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push)
		notifier := push.NewNotifier(pushSvc, pushStore, logger.With("component", "push"))
		eng.AddListener(notifier.OnListChanged)
	}

	return &Server{
		db:            db,
		hub:           hub,
		engine:        eng,
		identity:      id,
		catalogStore:  catalogStore,
		pushStore:     pushStore,
		backupStore:   backupStore,
		backupManager: backupMgr,
		pushService:   pushSvc,
		rateLimiter:   middleware.NewRateLimiter(),
		apiToken:      cfg.APIToken,
		logger:        logger,
	}
}

// Engine exposes the engine for shutdown.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// BackupManager exposes the backup manager for scheduling.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAPIToken(s.apiToken)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 60, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session
	mux.HandleFunc("POST /api/session", s.rateLimitedHandler(s.createSession))
	mux.HandleFunc("DELETE /api/session", s.deleteSession)

	// Reorder list
	mux.HandleFunc("GET /api/items", s.listItems)
	mux.HandleFunc("POST /api/items", s.addItem)
	mux.HandleFunc("POST /api/items/custom", s.addCustomItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.removeItem)
	mux.HandleFunc("POST /api/items/{id}/receive", s.markReceived)
	mux.HandleFunc("POST /api/items/{id}/toggle", s.toggleCompletion)
	mux.HandleFunc("POST /api/items/{id}/move-to-top", s.moveToTop)
	mux.HandleFunc("POST /api/items/clear", s.clearList)

	// Scanning
	mux.HandleFunc("POST /api/scan", s.scan)
	mux.HandleFunc("POST /api/scan/apply", s.applyScan)

	// Sync
	mux.HandleFunc("GET /api/sync/status", s.syncStatus)
	mux.HandleFunc("POST /api/sync/refresh", s.refresh)

	// Catalog + team data
	mux.HandleFunc("GET /api/catalog/search", s.searchCatalog)
	mux.HandleFunc("GET /api/catalog/categories", s.listCategories)
	mux.HandleFunc("GET /api/team-data/{item_id}", s.getTeamData)

	// Push notifications
	if s.pushService != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushSubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushList)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushUnsubscribe)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushVAPIDKey)
	}

	// Backups
	mux.HandleFunc("GET /api/backups", s.listBackups)
	mux.HandleFunc("GET /api/backups/status", s.backupStatus)
	mux.HandleFunc("POST /api/backups/run", s.runBackup)
	mux.HandleFunc("POST /api/backups/{id}/restore", s.restoreBackup)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
