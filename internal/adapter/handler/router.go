package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/metrics"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// NewRouter registers every route and wraps the mux in the middleware stack.
func NewRouter(h *HTTPHandler, m *metrics.Metrics, log *zap.Logger, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HealthCheck)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	mux.HandleFunc("GET /api/users", h.ListUsers)
	mux.HandleFunc("POST /api/users", h.CreateUser)
	mux.HandleFunc("PUT /api/users/{username}", h.UpdateUser)
	mux.HandleFunc("DELETE /api/users/{username}", h.DeleteUser)
	mux.HandleFunc("POST /api/login", h.Login)

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("POST /api/products", h.UpsertProduct)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.DeleteProduct)
	mux.HandleFunc("PUT /api/products/{id}/quantity", h.AdjustQuantity)
	mux.HandleFunc("GET /api/products/{id}/transactions", h.ListTransactions)
	mux.HandleFunc("GET /api/products/{id}/stock", h.GetStock)

	return chain(mux,
		RequestID(log),
		AccessLog,
		Recover,
		CORS(cfg.CORSOrigins),
		Timeout(cfg.RequestTimeout),
		Metrics(m),
	)
}
