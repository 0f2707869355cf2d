package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
	"github.com/alanyoungcy/skewscan/internal/server/handler"
	"github.com/alanyoungcy/skewscan/internal/service"
)

type stubSpreads struct {
	active    []domain.Spread
	report    domain.RunReport
	runErr    error
	lastLimit int
	runs      int
}

func (s *stubSpreads) Run(context.Context) (domain.RunReport, error) {
	s.runs++
	return s.report, s.runErr
}

func (s *stubSpreads) ListActive(_ context.Context, limit int) ([]domain.Spread, error) {
	s.lastLimit = limit
	return s.active, nil
}

type stubMappings struct {
	mappings  []domain.Mapping
	verifyErr error
	verified  []string
}

func (s *stubMappings) Run(context.Context) (domain.RunReport, error) {
	return domain.RunReport{RunID: "m1", Kind: domain.RunKindMatch}, nil
}

func (s *stubMappings) ListMappings(context.Context) ([]domain.Mapping, error) {
	return s.mappings, nil
}

func (s *stubMappings) VerifyMapping(_ context.Context, a, b string, verified bool) error {
	if s.verifyErr != nil {
		return s.verifyErr
	}
	s.verified = append(s.verified, domain.PairKey(a, b))
	return nil
}

type stubReports struct {
	reports map[domain.RunKind]domain.RunReport
}

func (s *stubReports) SetReport(_ context.Context, r domain.RunReport) error {
	s.reports[r.Kind] = r
	return nil
}

func (s *stubReports) GetReport(_ context.Context, kind domain.RunKind) (domain.RunReport, error) {
	r, ok := s.reports[kind]
	if !ok {
		return domain.RunReport{}, domain.ErrNotFound
	}
	return r, nil
}

type stubMarkets struct {
	markets map[string]domain.Market
}

func (s *stubMarkets) UpsertBatch(context.Context, []domain.Market) error { return nil }

func (s *stubMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *stubMarkets) ListActive(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

type countingLimiter struct {
	allow int
	calls int
}

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	l.calls++
	return l.calls <= l.allow, nil
}

type recordingTrigger struct{ jobs []string }

func (r *recordingTrigger) Trigger(name string) error {
	r.jobs = append(r.jobs, name)
	return nil
}

type fixture struct {
	spreads  *stubSpreads
	mappings *stubMappings
	reports  *stubReports
	markets  *stubMarkets
	bus      *service.LocalBus
	limiter  *countingLimiter
	trigger  *recordingTrigger
	handler  http.Handler
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		spreads:  &stubSpreads{report: domain.RunReport{RunID: "s1", Kind: domain.RunKindSpread, Written: 2}},
		mappings: &stubMappings{},
		reports:  &stubReports{reports: map[domain.RunKind]domain.RunReport{}},
		markets:  &stubMarkets{markets: map[string]domain.Market{}},
		bus:      service.NewLocalBus(10),
		limiter:  &countingLimiter{allow: 100},
		trigger:  &recordingTrigger{},
	}
	h := Handlers{
		Health:   handler.NewHealthHandler(nil, logger),
		Status:   handler.NewStatusHandler(handler.StatusInfo{Mode: "serve"}),
		Spreads:  handler.NewSpreadHandler(f.spreads, f.trigger, "spread", logger),
		Mappings: handler.NewMappingHandler(f.mappings, f.trigger, "match", logger),
		Runs: handler.NewRunsHandler(handler.RunsDeps{
			Reports: f.reports,
			Bus:     f.bus,
		}, logger),
		Markets: handler.NewMarketHandler(f.markets, logger),
	}
	cfg := Config{APIKey: apiKey, RateLimit: 5, RateLimitWindow: time.Minute}
	f.handler = NewHandler(cfg, h, nil, f.limiter, logger)
	return f
}

func (f *fixture) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t, "secret")
	if rec := f.do("GET", "/api/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
	if rec := f.do("GET", "/api/status", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rec.Code)
	}
	if rec := f.do("GET", "/api/status", "", "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Errorf("status with bearer = %d, want 200", rec.Code)
	}
	if rec := f.do("GET", "/api/status", "", "X-API-Key", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("status with wrong key = %d, want 401", rec.Code)
	}
}

func TestListSpreads(t *testing.T) {
	f := newFixture(t, "")
	f.spreads.active = []domain.Spread{{ID: "a", SkewPercentage: 15.38}}

	rec := f.do("GET", "/api/spreads?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Spreads []domain.Spread `json:"spreads"`
		Count   int             `json:"count"`
	}](t, rec)
	if body.Count != 1 || body.Spreads[0].ID != "a" || f.spreads.lastLimit != 10 {
		t.Errorf("body = %+v, limit = %d", body, f.spreads.lastLimit)
	}

	if rec := f.do("GET", "/api/spreads?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
	f.do("GET", "/api/spreads?limit=100000", "")
	if f.spreads.lastLimit != 500 {
		t.Errorf("capped limit = %d, want 500", f.spreads.lastLimit)
	}
}

func TestRunSpreads(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do("POST", "/api/spreads/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[domain.RunReport](t, rec); got.RunID != "s1" || got.Written != 2 {
		t.Errorf("report = %+v", got)
	}

	f.spreads.runErr = domain.ErrRunInProgress
	if rec := f.do("POST", "/api/spreads/run", ""); rec.Code != http.StatusConflict {
		t.Errorf("in-progress status = %d, want 409", rec.Code)
	}

	f.spreads.runErr = errors.New("read prices")
	if rec := f.do("POST", "/api/spreads/run", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("failed pass status = %d, want 500", rec.Code)
	}
}

func TestRunAsyncQueuesJob(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do("POST", "/api/mappings/run?async=true", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(f.trigger.jobs) != 1 || f.trigger.jobs[0] != "match" {
		t.Errorf("triggered = %v", f.trigger.jobs)
	}
	if f.spreads.runs != 0 {
		t.Error("async request ran a pass inline")
	}
}

func TestRunIsRateLimited(t *testing.T) {
	f := newFixture(t, "")
	f.limiter.allow = 1

	if rec := f.do("POST", "/api/spreads/run", ""); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := f.do("POST", "/api/spreads/run", "")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("second status = %d, retry-after %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := f.do("GET", "/api/spreads", ""); rec.Code != http.StatusOK {
		t.Errorf("reads should not be limited, got %d", rec.Code)
	}
}

func TestVerifyMapping(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do("POST", "/api/mappings/verify", `{"market_id_a":"poly-1","market_id_b":"kalshi-1","verified":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	body := decode[map[string]any](t, rec)
	if body["market_id_a"] != "kalshi-1" || body["market_id_b"] != "poly-1" {
		t.Errorf("pair not ordered: %v", body)
	}

	bad := []string{
		``,
		`{"market_id_a":"a","market_id_b":"a","verified":true}`,
		`{"market_id_a":"a","market_id_b":"b"}`,
		`{"market_id_a":"a","market_id_b":"b","verified":true,"extra":1}`,
	}
	for _, b := range bad {
		if rec := f.do("POST", "/api/mappings/verify", b); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q status = %d, want 400", b, rec.Code)
		}
	}

	f.mappings.verifyErr = domain.ErrNotFound
	if rec := f.do("POST", "/api/mappings/verify", `{"market_id_a":"a","market_id_b":"b","verified":false}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing mapping status = %d, want 404", rec.Code)
	}
}

func TestLatestRun(t *testing.T) {
	f := newFixture(t, "")
	f.reports.reports[domain.RunKindSpread] = domain.RunReport{RunID: "s9", Kind: domain.RunKindSpread}

	rec := f.do("GET", "/api/runs/spread/latest", "")
	if rec.Code != http.StatusOK || decode[domain.RunReport](t, rec).RunID != "s9" {
		t.Errorf("spread latest = %d %s", rec.Code, rec.Body)
	}
	if rec := f.do("GET", "/api/runs/match/latest", ""); rec.Code != http.StatusNotFound {
		t.Errorf("match latest = %d, want 404", rec.Code)
	}
	if rec := f.do("GET", "/api/runs/orders/latest", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind = %d, want 400", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, "secret")
	rec := f.do("OPTIONS", "/api/spreads", "", "Origin", "https://dash.example")
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://dash.example" {
		t.Errorf("allow-origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRunEvents(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		if err := f.bus.StreamAppend(ctx, domain.StreamRuns, []byte(`{"run_id":"`+id+`"}`)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rec := f.do(http.MethodGet, "/api/runs/events?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	page := decode[struct {
		Events []struct {
			ID     string           `json:"id"`
			Report domain.RunReport `json:"report"`
		} `json:"events"`
		Next string `json:"next"`
	}](t, rec)
	if len(page.Events) != 2 || page.Events[0].Report.RunID != "r1" {
		t.Fatalf("first page = %+v", page)
	}

	rec = f.do(http.MethodGet, "/api/runs/events?after="+page.Next, "")
	rest := decode[struct {
		Events []struct {
			Report domain.RunReport `json:"report"`
		} `json:"events"`
	}](t, rec)
	if len(rest.Events) != 1 || rest.Events[0].Report.RunID != "r3" {
		t.Fatalf("second page = %+v", rest)
	}
}

func TestRunHistoryWithoutStores(t *testing.T) {
	f := newFixture(t, "")
	for _, target := range []string{"/api/runs/abc/spreads", "/api/audit"} {
		if rec := f.do(http.MethodGet, target, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", target, rec.Code)
		}
	}
}

func TestGetMarket(t *testing.T) {
	f := newFixture(t, "")
	f.markets.markets["kalshi-1"] = domain.Market{ID: "kalshi-1", Title: "Fed cuts rates", Platform: "kalshi"}

	rec := f.do(http.MethodGet, "/api/markets/kalshi-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if m := decode[domain.Market](t, rec); m.Platform != "kalshi" {
		t.Fatalf("market = %+v", m)
	}

	if rec := f.do(http.MethodGet, "/api/markets/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rec.Code)
	}
}
