package syncqueue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/conteo/inventory-sync/internal/core/aggregate"
	"github.com/conteo/inventory-sync/internal/core/domain"
)

// fakeSyncAPI mimics the movements and aggregates endpoints: it dedupes on
// client id and answers 409 once closed.
type fakeSyncAPI struct {
	mu     sync.Mutex
	ledger map[string]domain.Movement
	order  []string
	closed bool

	// failPushes answers that many pushes with 500.
	failPushes int
	// dropAcks stores the batch but answers 500, as if the response was lost.
	dropAcks int
	// reject answers pushes with 400.
	reject bool
	// block, when set, holds pushes until closed; entered is signalled first.
	block   chan struct{}
	entered chan struct{}
	// aggBlock holds aggregates replies after the totals are read, so the
	// answer goes out stale; aggEntered is signalled first.
	aggBlock   chan struct{}
	aggEntered chan struct{}

	pushes   int
	aggCalls int
	onPush   func(api *fakeSyncAPI)
}

func newFakeSyncAPI(t *testing.T) (*fakeSyncAPI, *httptest.Server) {
	t.Helper()
	api := &fakeSyncAPI{ledger: make(map[string]domain.Movement)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func (f *fakeSyncAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/movements"):
		f.push(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/aggregates"):
		f.aggregates(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSyncAPI) push(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if block != nil {
		entered <- struct{}{}
		<-block
	}

	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid payload"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++

	switch {
	case f.closed:
		writeJSON(w, http.StatusConflict, errorPayload{Error: "session is closed for counting"})
		return
	case f.reject:
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "movement[0]: quantity must not be zero"})
		return
	case f.failPushes > 0:
		f.failPushes--
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: "internal server error"})
		return
	}

	accepted := 0
	ids := make([]string, 0, len(req.Movements))
	for _, m := range req.Movements {
		if _, dup := f.ledger[m.ClientID]; !dup {
			f.ledger[m.ClientID] = m.toDomain()
			f.order = append(f.order, m.ClientID)
			accepted++
		}
		ids = append(ids, m.ClientID)
	}

	if f.onPush != nil {
		f.onPush(f)
	}
	if f.dropAcks > 0 {
		f.dropAcks--
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, PushResult{
		AcceptedCount:      accepted,
		ConfirmedClientIDs: ids,
		Aggregates:         f.computeLocked(),
	})
}

func (f *fakeSyncAPI) aggregates(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	f.aggCalls++
	if f.closed {
		f.mu.Unlock()
		writeJSON(w, http.StatusConflict, errorPayload{Error: "session is closed for counting"})
		return
	}
	totals := f.computeLocked()
	block, entered := f.aggBlock, f.aggEntered
	f.mu.Unlock()

	if block != nil {
		entered <- struct{}{}
		<-block
	}
	writeJSON(w, http.StatusOK, aggregatesPayload{Aggregates: totals})
}

func (f *fakeSyncAPI) computeLocked() []domain.Balance {
	ms := make([]domain.Movement, 0, len(f.ledger))
	for _, id := range f.order {
		ms = append(ms, f.ledger[id])
	}
	return aggregate.Compute(ms)
}

func (f *fakeSyncAPI) ledgerSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ledger)
}

func (f *fakeSyncAPI) set(fn func(f *fakeSyncAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
