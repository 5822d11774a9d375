package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory repositories shared by the service tests. They reproduce the
// conditional-update semantics of the Mongo adapters under a single mutex.
// ---------------------------------------------------------------------------

type stubSessionRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Session
	createErr error
	// collisions makes the next N Create calls fail with ErrDuplicateAccessCode.
	collisions int
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{byID: make(map[string]*domain.Session)}
}

func (r *stubSessionRepo) put(s *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byID[s.ID] = &cp
}

func (r *stubSessionRepo) get(id string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *stubSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if r.collisions > 0 {
		r.collisions--
		return domain.ErrDuplicateAccessCode
	}
	for _, existing := range r.byID {
		if existing.AccessCode == s.AccessCode {
			return domain.ErrDuplicateAccessCode
		}
	}
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

func (r *stubSessionRepo) FindByID(_ context.Context, id string) (*domain.Session, error) {
	if s := r.get(id); s != nil {
		return s, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (r *stubSessionRepo) FindByAccessCode(_ context.Context, code string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.AccessCode == code {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (r *stubSessionRepo) FindOpenPersonal(_ context.Context, hostID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.HostID == hostID && s.Mode == domain.ModeIndividual && s.Status == domain.SessionOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (r *stubSessionRepo) ListByHost(_ context.Context, hostID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.byID {
		if s.HostID == hostID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *stubSessionRepo) CountOpenByHost(_ context.Context, hostID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.HostID == hostID && s.Status == domain.SessionOpen && s.Mode == domain.ModeMultiplayer {
			n++
		}
	}
	return n, nil
}

func (r *stubSessionRepo) CountCreatedSince(_ context.Context, hostID string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.HostID == hostID && s.Mode == domain.ModeMultiplayer && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *stubSessionRepo) AcquireWrite(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.Status != domain.SessionOpen || s.CatalogEditing {
		return false, nil
	}
	s.InflightWrites++
	s.CountingStarted = true
	return true, nil
}

func (r *stubSessionRepo) ReleaseWrite(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.InflightWrites--
	}
	return nil
}

func (r *stubSessionRepo) InflightWrites(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		return s.InflightWrites, nil
	}
	return 0, domain.ErrSessionNotFound
}

func (r *stubSessionRepo) AcquireCatalogEdit(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.Status != domain.SessionOpen || s.CountingStarted || s.CatalogEditing {
		return false, nil
	}
	s.InflightWrites++
	s.CatalogEditing = true
	return true, nil
}

func (r *stubSessionRepo) ReleaseCatalogEdit(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok && s.CatalogEditing {
		s.InflightWrites--
		s.CatalogEditing = false
	}
	return nil
}

func (r *stubSessionRepo) ResetCounting(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.InflightWrites > 0 {
		return false, nil
	}
	s.CountingStarted = false
	return true, nil
}

func (r *stubSessionRepo) Transition(_ context.Context, id string, from, to domain.SessionStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	switch to {
	case domain.SessionClosing:
		s.ClosingAt = &at
	case domain.SessionFinalized:
		s.FinalizedAt = &at
	}
	return true, nil
}

func (r *stubSessionRepo) SetReportID(_ context.Context, id, reportID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.ReportID = reportID
		return nil
	}
	return domain.ErrSessionNotFound
}

func (r *stubSessionRepo) ListPurgeable(_ context.Context, before time.Time, limit int) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.byID {
		if s.Status == domain.SessionFinalized && s.FinalizedAt != nil && s.FinalizedAt.Before(before) && s.MovementsPurgedAt == nil {
			cp := *s
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *stubSessionRepo) MarkMovementsPurged(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.MovementsPurgedAt = &at
	}
	return nil
}

type stubParticipantRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Participant
}

func newStubParticipantRepo() *stubParticipantRepo {
	return &stubParticipantRepo{byID: make(map[string]*domain.Participant)}
}

func (r *stubParticipantRepo) Create(_ context.Context, p *domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.SessionID == p.SessionID && existing.DisplayName == p.DisplayName {
			return domain.ErrDuplicateParticipant
		}
	}
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *stubParticipantRepo) FindByID(_ context.Context, id string) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrParticipantNotFound
}

func (r *stubParticipantRepo) FindByName(_ context.Context, sessionID, name string) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.SessionID == sessionID && p.DisplayName == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrParticipantNotFound
}

func (r *stubParticipantRepo) ListBySession(_ context.Context, sessionID string) ([]*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Participant
	for _, p := range r.byID {
		if p.SessionID == sessionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *stubParticipantRepo) CountActive(_ context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.byID {
		if p.SessionID == sessionID && p.Status == domain.ParticipantActive {
			n++
		}
	}
	return n, nil
}

func (r *stubParticipantRepo) SetStatus(_ context.Context, id string, status domain.ParticipantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Status = status
	return nil
}

func (r *stubParticipantRepo) TouchSync(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.LastSyncAt = &at
	}
	return nil
}

type stubMovementRepo struct {
	mu        sync.Mutex
	rows      []domain.Movement
	keys      map[string]struct{}
	insertErr error
	// beforeInsert runs while InsertBatch holds no lock, to interleave other calls.
	beforeInsert func()
}

func newStubMovementRepo() *stubMovementRepo {
	return &stubMovementRepo{keys: make(map[string]struct{})}
}

func (r *stubMovementRepo) InsertBatch(_ context.Context, movements []domain.Movement) (int, error) {
	if r.beforeInsert != nil {
		r.beforeInsert()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	n := 0
	for _, m := range movements {
		key := m.SessionID + "/" + m.ClientID
		if _, dup := r.keys[key]; dup {
			continue
		}
		r.keys[key] = struct{}{}
		r.rows = append(r.rows, m)
		n++
	}
	return n, nil
}

func (r *stubMovementRepo) ListBySession(_ context.Context, sessionID string) ([]domain.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Movement
	for _, m := range r.rows {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *stubMovementRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	rows, _ := r.ListBySession(ctx, sessionID)
	return int64(len(rows)), nil
}

func (r *stubMovementRepo) DeleteBySession(_ context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var n int64
	for _, m := range r.rows {
		if m.SessionID == sessionID {
			delete(r.keys, m.SessionID+"/"+m.ClientID)
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	return n, nil
}

type stubCatalogRepo struct {
	mu        sync.Mutex
	bySession map[string][]domain.CatalogEntry
	// midReplace runs after the old snapshot is deleted and before the new one
	// is written, like the gap in a non-transactional swap.
	midReplace func()
}

func newStubCatalogRepo() *stubCatalogRepo {
	return &stubCatalogRepo{bySession: make(map[string][]domain.CatalogEntry)}
}

func (r *stubCatalogRepo) ListBySession(_ context.Context, sessionID string) ([]domain.CatalogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CatalogEntry(nil), r.bySession[sessionID]...), nil
}

func (r *stubCatalogRepo) Replace(_ context.Context, sessionID string, entries []domain.CatalogEntry) error {
	r.mu.Lock()
	delete(r.bySession, sessionID)
	r.mu.Unlock()

	if r.midReplace != nil {
		r.midReplace()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySession[sessionID] = append([]domain.CatalogEntry(nil), entries...)
	return nil
}

func (r *stubCatalogRepo) Clear(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySession, sessionID)
	return nil
}

type stubReportRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.SavedReport
	createErr error
}

func newStubReportRepo() *stubReportRepo {
	return &stubReportRepo{byID: make(map[string]*domain.SavedReport)}
}

func (r *stubReportRepo) Create(_ context.Context, rep *domain.SavedReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if existing.SessionID == rep.SessionID {
			return domain.ErrReportExists
		}
	}
	cp := *rep
	r.byID[rep.ID] = &cp
	return nil
}

func (r *stubReportRepo) FindByID(_ context.Context, id string) (*domain.SavedReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep, ok := r.byID[id]; ok {
		cp := *rep
		return &cp, nil
	}
	return nil, domain.ErrReportNotFound
}

func (r *stubReportRepo) FindBySession(_ context.Context, sessionID string) (*domain.SavedReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.byID {
		if rep.SessionID == sessionID {
			cp := *rep
			return &cp, nil
		}
	}
	return nil, domain.ErrReportNotFound
}

func (r *stubReportRepo) ListByOwner(_ context.Context, ownerID string) ([]*domain.SavedReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SavedReport
	for _, rep := range r.byID {
		if rep.OwnerID == ownerID {
			cp := *rep
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubReportRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type stubCache struct {
	mu          sync.Mutex
	data        map[string][]domain.Balance
	invalidated []string
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string][]domain.Balance)}
}

func (c *stubCache) Get(_ context.Context, sessionID string) ([]domain.Balance, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[sessionID]
	return b, ok, nil
}

func (c *stubCache) Set(_ context.Context, sessionID string, balances []domain.Balance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[sessionID] = balances
	return nil
}

func (c *stubCache) Invalidate(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, sessionID)
	c.invalidated = append(c.invalidated, sessionID)
	return nil
}

type stubDispatcher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (d *stubDispatcher) Enqueue(e domain.SessionEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *stubDispatcher) types() []domain.SessionEventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.SessionEventType, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

// ---------------------------------------------------------------------------
// Fixture wiring every service over the same stores.
// ---------------------------------------------------------------------------

type fixture struct {
	sessions     *stubSessionRepo
	participants *stubParticipantRepo
	movements    *stubMovementRepo
	catalog      *stubCatalogRepo
	reports      *stubReportRepo
	cache        *stubCache
	events       *stubDispatcher

	sessionSvc *SessionService
	syncSvc    *SyncService
	reportSvc  *ReportService
}

func newFixture() *fixture {
	f := &fixture{
		sessions:     newStubSessionRepo(),
		participants: newStubParticipantRepo(),
		movements:    newStubMovementRepo(),
		catalog:      newStubCatalogRepo(),
		reports:      newStubReportRepo(),
		cache:        newStubCache(),
		events:       &stubDispatcher{},
	}
	policy := DefaultSessionPolicy()
	policy.InvalidCodeDelay = 0
	f.sessionSvc = NewSessionService(f.sessions, f.participants, f.events, policy, zerolog.Nop())
	f.syncSvc = NewSyncService(f.sessions, f.participants, f.movements, f.catalog, f.cache, DefaultSyncPolicy(), zerolog.Nop())
	f.reportSvc = NewReportService(f.sessions, f.movements, f.catalog, f.reports, f.events,
		FinalizePolicy{DrainTimeout: 200 * time.Millisecond, DrainPoll: time.Millisecond}, zerolog.Nop())
	return f
}
