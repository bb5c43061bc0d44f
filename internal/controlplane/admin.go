// Package controlplane expõe as rotas administrativas do gateway, servidas
// em um endereço separado (ADMIN_ADDR) e nunca atrás do pipeline de borda.
package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"anires-gateway/internal/observability"
	"anires-gateway/middleware/ratelimit/domain"
	"anires-gateway/middleware/ratelimit/infra"
)

// Pinger é qualquer dependência que precisa estar de pé para o gateway atender (Redis, via PingFunc).
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Stats *infra.MemoryStatsStore
	// Windows reporta quantas janelas de rate limit estão em memória.
	Windows func() int
	Warn    *observability.WarnSampler
	// Slots é o pool do limite de concorrência, quando ligado.
	Slots  domain.SlotPool
	Ready  Pinger
	Logger *zap.Logger
}

type statsResponse struct {
	infra.Snapshot
	Windows            int   `json:"windows"`
	InFlight           int   `json:"inFlight"`
	Capacity           int   `json:"capacity,omitempty"`
	SuppressedWarnings int64 `json:"suppressedWarnings"`
}

func Router(d Deps) chi.Router {
	log := observability.OrNop(d.Logger)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready.Ping(ctx); err != nil {
				log.Warn("readiness check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		resp := statsResponse{SuppressedWarnings: d.Warn.Suppressed()}
		if d.Stats != nil {
			resp.Snapshot = d.Stats.Snapshot()
		}
		if d.Windows != nil {
			resp.Windows = d.Windows()
		}
		if d.Slots != nil {
			resp.InFlight, resp.Capacity = d.Slots.InUse(), d.Slots.Cap()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	return r
}

// PingFunc adapta uma função ao Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
