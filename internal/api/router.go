// Package api serves a read-only JSON view of the scanner's state.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"trading-signals/internal/model"
	"trading-signals/internal/store/sqlite"
)

// PositionLister returns the currently open positions.
type PositionLister interface {
	Positions() []model.Position
}

// TradeJournal reads closed positions back, newest first.
type TradeJournal interface {
	RecentClosed(ctx context.Context, limit int) ([]sqlite.ClosedRecord, error)
}

// SubscriberLister returns the registered recipients.
type SubscriberLister interface {
	List() []string
}

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 500
)

// NewRouter sets up the /api/v1 routes. journal may be nil when no trade
// journal is configured.
func NewRouter(positions PositionLister, journal TradeJournal, subscribers SubscriberLister) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/v1/positions", func(w http.ResponseWriter, r *http.Request) {
		open := positions.Positions()
		writeJSON(w, http.StatusOK, map[string]any{
			"count":     len(open),
			"positions": open,
		})
	})

	mux.HandleFunc("GET /api/v1/trades", func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			writeError(w, http.StatusNotFound, "trade journal not configured")
			return
		}
		limit := defaultTradeLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxTradeLimit)
		}
		trades, err := journal.RecentClosed(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":  len(trades),
			"trades": trades,
		})
	})

	mux.HandleFunc("GET /api/v1/subscribers", func(w http.ResponseWriter, r *http.Request) {
		ids := subscribers.List()
		writeJSON(w, http.StatusOK, map[string]any{
			"count":       len(ids),
			"subscribers": ids,
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
