// Package api implements the API/boundary adapters (C12): pure
// translation from external HTTP/WebSocket requests to core operations,
// with no business logic of its own (spec §4.12).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xai-network/xaid/chainstore"
	"github.com/xai-network/xaid/lightclient"
	"github.com/xai-network/xaid/logger"
	"github.com/xai-network/xaid/mempool"
	"github.com/xai-network/xaid/statesync"

	"github.com/btcsuite/btclog"
)

// Server wires the core components to HTTP/WebSocket routes. It holds no
// consensus state of its own (spec §4.12: "Pure translation ... No
// business logic").
type Server struct {
	store  *chainstore.Store
	pool   *mempool.Pool
	lc     *lightclient.Service
	sender *statesync.Sender

	progress *statesync.ProgressStore
	tracker  *lightclient.SyncTracker

	hub *Hub
	log btclog.Logger

	router *mux.Router
}

// New constructs a Server and registers its routes. progress may be nil
// if this node never serves resume/progress queries.
func New(store *chainstore.Store, pool *mempool.Pool, lc *lightclient.Service, sender *statesync.Sender, progress *statesync.ProgressStore) *Server {
	log, _ := logger.Get(logger.SubsystemTags.APIS)
	s := &Server{
		store:    store,
		pool:     pool,
		lc:       lc,
		sender:   sender,
		progress: progress,
		tracker:  lightclient.NewSyncTracker(),
		hub:      NewHub(),
		log:      log,
		router:   mux.NewRouter(),
	}
	s.addRoutes()
	return s
}

// Router returns the server's http.Handler, e.g. for http.ListenAndServe
// or httptest.
func (s *Server) Router() http.Handler { return s.router }

// Hub returns the WebSocket push hub so core event producers (new block,
// new tx, stats, sync) can publish without importing package api.
func (s *Server) Hub() *Hub { return s.hub }

// SyncTracker returns the server's sync-progress tracker, so a sync
// downloader can report height updates that GET /sync/progress reads
// back.
func (s *Server) SyncTracker() *lightclient.SyncTracker { return s.tracker }

type handlerFunc func(r *http.Request, vars map[string]string) (interface{}, *HandlerError)

// makeHandler adapts a handlerFunc to http.HandlerFunc, grounded on
// apiserver/server/routes.go's makeHandler wrapper: uniform error
// envelope, uniform JSON encoding.
func makeHandler(log btclog.Logger, handler handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response, hErr := handler(r, mux.Vars(r))
		if hErr != nil {
			log.Warnf("request %s %s failed: %s", r.Method, r.URL.Path, hErr)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(hErr.HTTPStatus)
			json.NewEncoder(w).Encode(hErr.envelope())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Warnf("encoding response for %s %s: %s", r.Method, r.URL.Path, err)
		}
	}
}

func (s *Server) addRoutes() {
	s.router.HandleFunc("/tx", makeHandler(s.log, s.handleSubmitTx)).Methods("POST")
	s.router.HandleFunc("/blocks/{height}", makeHandler(s.log, s.handleGetBlock)).Methods("GET")
	s.router.HandleFunc("/headers", makeHandler(s.log, s.handleGetHeaders)).Methods("GET")
	s.router.HandleFunc("/proof/{txid}", makeHandler(s.log, s.handleGetProof)).Methods("GET")
	s.router.HandleFunc("/sync/snapshot/latest", makeHandler(s.log, s.handleGetLatestSnapshot)).Methods("GET")
	s.router.HandleFunc("/sync/snapshot/{id}/chunk/{i}", s.handleGetChunk).Methods("GET")
	s.router.HandleFunc("/sync/snapshot/resume", makeHandler(s.log, s.handleResumeSnapshot)).Methods("POST")
	s.router.HandleFunc("/sync/progress", makeHandler(s.log, s.handleGetSyncProgress)).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}
