package edge

import (
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"anires-gateway/middleware/ratelimit"
	rldomain "anires-gateway/middleware/ratelimit/domain"
	"anires-gateway/middleware/ratelimit/infra"
	"anires-gateway/middleware/security"
	"anires-gateway/middleware/security/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	handler http.Handler
	store   *infra.MemoryWindowStore
	stats   *infra.MemoryStatsStore
	calls   int
	now     time.Time
}

func newFixture(t *testing.T, mode domain.Mode, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store: infra.NewMemoryWindowStore(),
		stats: infra.NewMemoryStatsStore(),
		now:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	opts := Options{
		Mode:          mode,
		RedirectHTTPS: true,
		Store:         f.store,
		Stats:         f.stats,
		Now:           func() time.Time { return f.now },
	}
	for _, m := range mutate {
		m(&opts)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		w.WriteHeader(http.StatusOK)
	})
	f.handler = Middleware(opts)(next)
	return f
}

func (f *fixture) do(method, url, origin, remoteAddr string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, url, nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	if remoteAddr != "" {
		r.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func assertNoSecurityHeaders(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	for k := range security.DefaultHeaders() {
		if w.Header().Get(k) != "" {
			t.Fatalf("expected no %s on early response", k)
		}
	}
}

func TestPipeline_WindowAccountingOnAPI(t *testing.T) {
	f := newFixture(t, domain.ModeProduction)

	for i := 1; i <= 60; i++ {
		if w := f.do(http.MethodGet, "https://anires.org/api/claim", "", "10.0.0.1:1000"); w.Code != http.StatusOK {
			t.Fatalf("expected request %d allowed, got %d", i, w.Code)
		}
	}
	w := f.do(http.MethodGet, "https://anires.org/api/claim", "", "10.0.0.1:1000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After=60, got %q", w.Header().Get("Retry-After"))
	}
	if w.Body.String() != ratelimit.RejectMessage {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
	assertNoSecurityHeaders(t, w)
}

func TestPipeline_WindowResetRestartsCount(t *testing.T) {
	f := newFixture(t, domain.ModeProduction)

	for i := 0; i < 61; i++ {
		f.do(http.MethodGet, "https://anires.org/api/claim", "", "10.0.0.1:1000")
	}
	f.now = f.now.Add(60 * time.Second)

	if w := f.do(http.MethodGet, "https://anires.org/api/claim", "", "10.0.0.1:1000"); w.Code != http.StatusOK {
		t.Fatalf("expected allowed after reset, got %d", w.Code)
	}
	win, _ := f.store.Get("10.0.0.1")
	if win.Count != 1 || !win.ResetAt.Equal(f.now.Add(60*time.Second)) {
		t.Fatalf("expected fresh window, got %+v", win)
	}
}

func TestPipeline_PerIdentifierIsolation(t *testing.T) {
	f := newFixture(t, domain.ModeProduction)

	for i := 0; i < 61; i++ {
		f.do(http.MethodGet, "https://anires.org/api/claim", "", "10.0.0.1:1000")
	}
	if w := f.do(http.MethodGet, "https://anires.org/api/claim", "", "10.0.0.2:1000"); w.Code != http.StatusOK {
		t.Fatalf("expected other client unaffected, got %d", w.Code)
	}
}

func TestPipeline_RateLimitOnlyOnAPI(t *testing.T) {
	f := newFixture(t, domain.ModeProduction)

	for i := 0; i < 100; i++ {
		if w := f.do(http.MethodGet, "https://anires.org/claim", "", "10.0.0.1:1000"); w.Code != http.StatusOK {
			t.Fatalf("expected page requests never limited, got %d", w.Code)
		}
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected no windows for non-api paths, got %d", f.store.Len())
	}
}

func TestPipeline_SchemeNormalization(t *testing.T) {
	f := newFixture(t, domain.ModeProduction)

	w := f.do(http.MethodGet, "http://example.com/api/foo?q=1", "https://evil.com", "10.0.0.1:1000")
	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "https://example.com/api/foo?q=1" {
		t.Fatalf("unexpected Location %q", got)
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected redirect not to consume a rate limit slot")
	}
	if f.calls != 0 {
		t.Fatalf("expected application not called")
	}
	assertNoSecurityHeaders(t, w)
}

func TestPipeline_OriginAllowList(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, domain.ModeProduction, func(o *Options) { o.Logger = zap.New(core) })

	for _, origin := range []string{"https://anires.org", "https://sub.anires.org"} {
		if w := f.do(http.MethodPost, "https://anires.org/api/notify-claim", origin, ""); w.Code != http.StatusOK {
			t.Fatalf("expected %s allowed, got %d", origin, w.Code)
		}
	}

	w := f.do(http.MethodPost, "https://anires.org/api/notify-claim", "https://evil.com", "")
	if w.Code != http.StatusForbidden || w.Body.String() != security.DeniedMessage {
		t.Fatalf("expected 403 Acesso negado, got %d %q", w.Code, w.Body.String())
	}
	assertNoSecurityHeaders(t, w)

	w = f.do(http.MethodGet, "https://anires.org/admin/dashboard", "https://evil.com", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on admin, got %d", w.Code)
	}

	w = f.do(http.MethodGet, "https://anires.org/roadmap", "https://evil.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected page request to proceed, got %d", w.Code)
	}

	if n := logs.FilterMessage("Tentativa de acesso de origem não permitida").Len(); n != 3 {
		t.Fatalf("expected 3 origin warnings, got %d", n)
	}
}

func TestPipeline_NonProductionRelaxation(t *testing.T) {
	f := newFixture(t, domain.ModeDevelopment)

	if w := f.do(http.MethodPost, "https://anires.org/api/x", "http://localhost:3000", ""); w.Code != http.StatusOK {
		t.Fatalf("expected localhost allowed outside production, got %d", w.Code)
	}
	if w := f.do(http.MethodPost, "https://anires.org/api/x", "https://evil.com", ""); w.Code != http.StatusOK {
		t.Fatalf("expected only a warning outside production, got %d", w.Code)
	}
}

func TestPipeline_MissingOriginPasses(t *testing.T) {
	for _, mode := range []domain.Mode{domain.ModeProduction, domain.ModeDevelopment} {
		f := newFixture(t, mode)
		for _, path := range []string{"/api/x", "/admin/x", "/"} {
			if w := f.do(http.MethodGet, "https://anires.org"+path, "", ""); w.Code != http.StatusOK {
				t.Fatalf("mode=%s path=%s: expected 200, got %d", mode, path, w.Code)
			}
		}
	}
}

func TestPipeline_SuspiciousIPBlockedIndependentlyOfOrigin(t *testing.T) {
	f := newFixture(t, domain.ModeProduction, func(o *Options) { o.SuspiciousIPs = []string{"203.0.113.7"} })

	w := f.do(http.MethodGet, "https://anires.org/", "https://anires.org", "203.0.113.7:5000")
	if w.Code != http.StatusForbidden || w.Body.String() != security.DeniedMessage {
		t.Fatalf("expected 403 for suspicious ip, got %d %q", w.Code, w.Body.String())
	}
	if f.stats.Snapshot().ByReason[string(domain.ReasonSuspiciousIP)] != 1 {
		t.Fatalf("expected suspicious ip recorded in stats")
	}
}

func TestPipeline_HeadersInjectedOnceOnPass(t *testing.T) {
	f := newFixture(t, domain.ModeProduction)
	// empilhar o pipeline não pode duplicar headers
	h := f.handler
	double := Middleware(Options{Mode: domain.ModeProduction, RedirectHTTPS: true})(h)

	w := httptest.NewRecorder()
	double.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "https://anires.org/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	for k, v := range security.DefaultHeaders() {
		if got := w.Header().Values(k); len(got) != 1 || got[0] != v {
			t.Fatalf("header %s: expected [%q], got %q", k, v, got)
		}
	}
}

func TestPipeline_StaticAssetsBypass(t *testing.T) {
	f := newFixture(t, domain.ModeProduction, func(o *Options) { o.Limit = 1 })

	for _, path := range []string{"/favicon.ico", "/_next/static/chunks/app.js", "/images/burro.png", "/fonts/x.woff2"} {
		for i := 0; i < 3; i++ {
			// http, origem ruim e acima do limite: nada disso é avaliado
			w := f.do(http.MethodGet, "http://anires.org"+path, "https://evil.com", "10.0.0.1:1000")
			if w.Code != http.StatusOK {
				t.Fatalf("expected %s to bypass pipeline, got %d", path, w.Code)
			}
			if w.Header().Get("Strict-Transport-Security") != "" {
				t.Fatalf("expected no header injection on %s", path)
			}
		}
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected static requests not to touch the rate limiter")
	}
}

func TestIsStatic(t *testing.T) {
	cases := map[string]bool{
		"/_next/static/x.js": true,
		"/_next/image":       true,
		"/favicon.ico":       true,
		"/imagesfoo":         true,
		"/assets/a.css":      true,
		"/":                  false,
		"/api/images":        false,
		"/claim":             false,
	}
	for path, want := range cases {
		if got := IsStatic(path, DefaultStaticPrefixes); got != want {
			t.Errorf("IsStatic(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestPipeline_UpstreamHeadersAreNotDuplicated(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		_, _ = w.Write([]byte("pagina"))
	}))
	defer app.Close()
	target, err := url.Parse(app.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	h := Middleware(Options{Mode: domain.ModeProduction, RedirectHTTPS: true})(httputil.NewSingleHostReverseProxy(target))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "https://anires.org/roadmap", nil))
	if w.Code != http.StatusOK || w.Body.String() != "pagina" {
		t.Fatalf("expected proxied page, got %d %q", w.Code, w.Body.String())
	}
	for k, v := range security.DefaultHeaders() {
		if got := w.Header().Values(k); len(got) != 1 || got[0] != v {
			t.Fatalf("header %s: expected [%q], got %q", k, v, got)
		}
	}
}

func TestPipeline_ForwardedHTTPSIsNotRedirected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(Middleware(Options{
		Mode:                domain.ModeProduction,
		RedirectHTTPS:       true,
		TrustForwardedProto: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})))
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	do := func(proto string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		if proto != "" {
			req.Header.Set("X-Forwarded-Proto", proto)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		return resp
	}

	if resp := do("https"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 behind a TLS terminator, got %d (Location %q)", resp.StatusCode, resp.Header.Get("Location"))
	}
	if resp := do("http"); resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301 for forwarded http, got %d", resp.StatusCode)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected application called once, got %d", n)
	}
}

func TestDefaultStore_UsesInjectedClock(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store := defaultStore(Options{Now: func() time.Time { return now }})

	// expirada no relógio injetado, ainda válida no relógio real
	store.Set("10.0.0.1", rldomain.ClientWindow{Count: 3, ResetAt: now.Add(-time.Second)})
	if n := store.Evict(); n != 1 || store.Len() != 0 {
		t.Fatalf("expected janitor to follow the pipeline clock, evicted %d", n)
	}
}
