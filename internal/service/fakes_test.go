package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memMarkets struct {
	markets []domain.Market
	err     error
}

func (m *memMarkets) UpsertBatch(_ context.Context, markets []domain.Market) error {
	m.markets = append(m.markets, markets...)
	return nil
}

func (m *memMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	for _, mk := range m.markets {
		if mk.ID == id {
			return mk, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (m *memMarkets) ListActive(context.Context, domain.ListOpts) ([]domain.Market, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Market
	for _, mk := range m.markets {
		if mk.Status == domain.MarketStatusResolved || mk.Status == domain.MarketStatusSuspended {
			continue
		}
		out = append(out, mk)
	}
	return out, nil
}

type memPrices struct {
	prices    []domain.Price
	err       error
	lastSince time.Time
}

func (m *memPrices) InsertBatch(_ context.Context, prices []domain.Price) error {
	m.prices = append(m.prices, prices...)
	return nil
}

func (m *memPrices) ListSince(_ context.Context, since time.Time) ([]domain.Price, error) {
	m.lastSince = since
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Price
	for _, p := range m.prices {
		if !p.RecordedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

// memMappings mirrors the SQL upsert: manual rows are never updated.
type memMappings struct {
	rows      map[string]domain.Mapping
	listErr   error
	upsertErr map[string]error
	upserts   int
}

func newMemMappings(rows ...domain.Mapping) *memMappings {
	m := &memMappings{rows: make(map[string]domain.Mapping)}
	for _, r := range rows {
		m.rows[r.Key()] = r
	}
	return m
}

func (m *memMappings) Upsert(_ context.Context, mp domain.Mapping) error {
	if err := m.upsertErr[mp.Key()]; err != nil {
		return err
	}
	m.upserts++
	if cur, ok := m.rows[mp.Key()]; ok && cur.ManualVerified {
		return nil
	}
	m.rows[mp.Key()] = mp
	return nil
}

func (m *memMappings) Get(_ context.Context, a, b string) (domain.Mapping, error) {
	mp, ok := m.rows[domain.PairKey(a, b)]
	if !ok {
		return domain.Mapping{}, domain.ErrNotFound
	}
	return mp, nil
}

func (m *memMappings) List(context.Context) ([]domain.Mapping, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Mapping, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memMappings) SetVerified(_ context.Context, a, b string, verified bool) error {
	key := domain.PairKey(a, b)
	mp, ok := m.rows[key]
	if !ok {
		return domain.ErrNotFound
	}
	mp.ManualVerified = verified
	m.rows[key] = mp
	return nil
}

type memSpreads struct {
	mu            sync.Mutex
	rows          []domain.Spread
	deactivateErr error
	insertErr     func(domain.Spread) error
	deactivations int
}

func (m *memSpreads) DeactivateAll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deactivateErr != nil {
		return 0, m.deactivateErr
	}
	m.deactivations++
	var n int64
	for i := range m.rows {
		if m.rows[i].IsActive {
			m.rows[i].IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memSpreads) Insert(_ context.Context, s domain.Spread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		if err := m.insertErr(s); err != nil {
			return err
		}
	}
	m.rows = append(m.rows, s)
	return nil
}

func (m *memSpreads) ListActive(_ context.Context, limit int) ([]domain.Spread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Spread
	for _, s := range m.rows {
		if s.IsActive {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSpreads) ListByRun(_ context.Context, runID string) ([]domain.Spread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Spread
	for _, s := range m.rows {
		if s.RunID == runID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSpreads) activeCount() int {
	active, _ := m.ListActive(context.Background(), 0)
	return len(active)
}

type recordingBus struct {
	published map[string]int
	appended  int
}

func (b *recordingBus) Publish(_ context.Context, channel string, _ []byte) error {
	if b.published == nil {
		b.published = make(map[string]int)
	}
	b.published[channel]++
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *recordingBus) StreamAppend(context.Context, string, []byte) error {
	b.appended++
	return nil
}

func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type memReports struct {
	reports map[domain.RunKind]domain.RunReport
}

func (m *memReports) SetReport(_ context.Context, r domain.RunReport) error {
	if m.reports == nil {
		m.reports = make(map[domain.RunKind]domain.RunReport)
	}
	m.reports[r.Kind] = r
	return nil
}

func (m *memReports) GetReport(_ context.Context, kind domain.RunKind) (domain.RunReport, error) {
	r, ok := m.reports[kind]
	if !ok {
		return domain.RunReport{}, domain.ErrNotFound
	}
	return r, nil
}

type memAudit struct {
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type recordingAlerts struct {
	events []string
}

func (r *recordingAlerts) Notify(_ context.Context, event, _, _ string) error {
	r.events = append(r.events, event)
	return nil
}

type memArchiver struct {
	spreads  int
	mappings int
}

func (m *memArchiver) ArchiveSpreads(_ context.Context, r domain.RunReport, s []domain.Spread) (string, error) {
	m.spreads += len(s)
	return "spreads/" + r.RunID + ".jsonl", nil
}

func (m *memArchiver) ArchiveMappings(_ context.Context, r domain.RunReport, mp []domain.Mapping) (string, error) {
	m.mappings += len(mp)
	return "mappings/" + r.RunID + ".jsonl", nil
}

type heldLocks struct{}

func (heldLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}
