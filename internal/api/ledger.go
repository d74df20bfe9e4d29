package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/ledger"
)

// LedgerAPI provides read-only access to the processed-email ledger
type LedgerAPI struct {
	store *ledger.Store
}

// NewLedgerAPI creates a new ledger API
func NewLedgerAPI(store *ledger.Store) *LedgerAPI {
	return &LedgerAPI{store: store}
}

// RegisterRoutes registers ledger API routes (all read-only)
func (api *LedgerAPI) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/", api.handleListEntries)       // GET /api/v1/ledger
		r.Get("/{emailID}", api.handleGetEntry) // GET /api/v1/ledger/{emailID}
	})
}

// handleListEntries returns ledger entries, newest first
// GET /api/v1/ledger?committed=&since=&limit=&offset=
func (api *LedgerAPI) handleListEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := ledger.QueryOptions{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}

	if c := query.Get("committed"); c != "" {
		committed, err := strconv.ParseBool(c)
		if err != nil {
			respondError(w, http.StatusBadRequest, "committed must be true or false")
			return
		}
		opts.Committed = &committed
	}

	if since := query.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		opts.Since = t
	}

	entries, err := api.store.List(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// handleGetEntry returns the outcome recorded for one email
func (api *LedgerAPI) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := api.store.Lookup(r.Context(), chi.URLParam(r, "emailID"))
	if err != nil {
		if errors.Is(err, core.ErrLedgerEntryNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
