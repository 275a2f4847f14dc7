package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"blog/internal/metrics"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	schema   *graphql.Schema
	relay    *relay.Handler
	metrics  *metrics.Metrics
	log      *zap.Logger
	health   func(ctx context.Context) error
	upgrader websocket.Upgrader
}

// New serves schema over HTTP and WebSocket. health backs /healthz and may
// be nil.
func New(schema *graphql.Schema, m *metrics.Metrics, log *zap.Logger, health func(ctx context.Context) error) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		schema:  schema,
		relay:   &relay.Handler{Schema: schema},
		metrics: m,
		log:     log,
		health:  health,
		upgrader: websocket.Upgrader{
			Subprotocols:    []string{protocolTransportWS, protocolGraphQLWS},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes returns the full HTTP surface of the API.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/graphql", h.instrument("/graphql", WithBearer(http.HandlerFunc(h.GraphQL))))
	mux.Handle("/healthz", h.instrument("/healthz", http.HandlerFunc(h.Healthz)))
	if h.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", h.NotFound)
	return WithRecover(mux, h.log)
}

// GraphQL executes queries and mutations sent as JSON over POST and hands
// WebSocket upgrades to the subscription transport.
func (h *Handler) GraphQL(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.serveWS(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	h.relay.ServeHTTP(w, r)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not Found", http.StatusNotFound)
}
