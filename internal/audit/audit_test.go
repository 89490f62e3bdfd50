package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/pagespeed"
)

const goodPage = `<!DOCTYPE html>
<html><head>
<title>Hair Transplant in Istanbul: A Guide</title>
<meta name="description" content="Everything you need to know before booking a hair transplant in Istanbul, from costs to recovery.">
<meta name="viewport" content="width=device-width, initial-scale=1">
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[{"@type":"Article"},{"@type":["MedicalClinic","LocalBusiness"]}]}</script>
</head><body>
<main><article>
<h1>Hair Transplant in Istanbul</h1>
<img src="/a.jpg" alt="Clinic" width="800" height="600">
<h2>Costs</h2>
<p>%s</p>
<img src="/b.jpg" alt="Recovery" width="800" height="600" loading="lazy">
<h3>Recovery</h3>
<p>Read our <a href="/recovery/">recovery guide</a> or the <a href="https://who.int/" rel="nofollow">WHO advice</a>.</p>
</article></main>
</body></html>`

const poorPage = `<html><head><title>Hi</title></head><body>
<h1>One</h1><h1>Two</h1><h4>Deep</h4>
<img src="/a.jpg"><img src="/b.jpg" alt="">
<a href="https://elsewhere.test/"></a>
<script type="application/ld+json">{broken</script>
<p>Short.</p>
</body></html>`

type mockMetrics struct {
	m        *pagespeed.Metrics
	err      error
	strategy string
}

func (m *mockMetrics) Run(_ context.Context, url, strategy string) (*pagespeed.Metrics, error) {
	m.strategy = strategy
	if m.err != nil {
		return nil, m.err
	}
	out := *m.m
	out.URL, out.Strategy = url, strategy
	return &out, nil
}

func serve(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func byName(r *Report) map[string]CheckResult {
	out := make(map[string]CheckResult)
	for _, c := range r.Checks {
		out[c.Name] = c
	}
	return out
}

func TestAuditGoodPage(t *testing.T) {
	long := strings.Repeat("Patients travel to Istanbul for experienced surgeons and modern clinics. ", 40)
	base := serve(t, fmt.Sprintf(goodPage, long))
	metrics := &mockMetrics{m: &pagespeed.Metrics{Score: 92, LCP: 1800, CLS: 0.02, TBT: 90, FCP: 900}}

	report, err := NewAuditor(5*time.Second, metrics).Audit(context.Background(), base+"/guide")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Checks) != 7 {
		t.Fatalf("expected 7 checks, got %d", len(report.Checks))
	}
	checks := byName(report)
	for _, name := range []string{"images", "semantic", "mobile", "schema", "links", "content", "core_web_vitals"} {
		c, ok := checks[name]
		if !ok {
			t.Errorf("missing check %s", name)
			continue
		}
		if !c.Passed || c.Err != "" {
			t.Errorf("check %s did not pass: %+v", name, c)
		}
	}
	if !strings.Contains(strings.Join(checks["schema"].Findings, " "), "MedicalClinic") {
		t.Errorf("expected schema types in findings, got %v", checks["schema"].Findings)
	}
	if report.Score < 90 {
		t.Errorf("expected a high score, got %d", report.Score)
	}
}

func TestAuditPoorPage(t *testing.T) {
	base := serve(t, poorPage)
	report, err := NewAuditor(5*time.Second, nil).Audit(context.Background(), base+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Checks) != 6 {
		t.Errorf("expected vitals check skipped without metrics, got %d checks", len(report.Checks))
	}
	checks := byName(report)
	if checks["images"].Passed || checks["images"].Score != 0 {
		t.Errorf("expected images to fail, got %+v", checks["images"])
	}
	if checks["semantic"].Passed {
		t.Errorf("expected semantic to fail, got %+v", checks["semantic"])
	}
	if checks["mobile"].Passed {
		t.Error("expected mobile to fail without viewport")
	}
	if checks["schema"].Passed {
		t.Error("expected schema to fail on invalid JSON-LD")
	}
	if checks["links"].Passed {
		t.Errorf("expected links to fail, got %+v", checks["links"])
	}
	if checks["content"].Passed {
		t.Error("expected thin content")
	}
	if len(report.Failed()) != 6 {
		t.Errorf("expected all 6 checks failed, got %v", report.Failed())
	}
}

func TestAuditCheckErrorIsIsolated(t *testing.T) {
	base := serve(t, poorPage)
	metrics := &mockMetrics{err: errors.New("quota exceeded")}
	report, err := NewAuditor(5*time.Second, metrics).Audit(context.Background(), base+"/")
	if err != nil {
		t.Fatalf("a failing check must not fail the audit: %v", err)
	}
	vitals := byName(report)["core_web_vitals"]
	if vitals.Err != "quota exceeded" {
		t.Errorf("expected recorded error, got %+v", vitals)
	}
	if byName(report)["images"].Err != "" {
		t.Error("other checks must be unaffected")
	}
}

func TestAuditFetchErrors(t *testing.T) {
	base := serve(t, goodPage)
	a := NewAuditor(5*time.Second, nil)
	if _, err := a.Audit(context.Background(), base+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
	if _, err := a.Audit(context.Background(), "not a url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestOverallSkipsErroredChecks(t *testing.T) {
	got := overall([]CheckResult{{Score: 100}, {Score: 51}, {Score: 0, Err: "x"}})
	if got != 76 {
		t.Errorf("expected 76, got %d", got)
	}
	if overall(nil) != 0 {
		t.Error("expected 0 without checks")
	}
}

func TestSchemaTypes(t *testing.T) {
	v := map[string]any{"@type": "WebPage", "@graph": []any{map[string]any{"@type": "FAQPage"}}}
	got := schemaTypes(v)
	if strings.Join(got, ",") != "WebPage,FAQPage" {
		t.Errorf("unexpected types %v", got)
	}
}

func TestAuditStrategy(t *testing.T) {
	base := serve(t, fmt.Sprintf(goodPage, "short"))
	metrics := &mockMetrics{m: &pagespeed.Metrics{Score: 50, LCP: 4000, CLS: 0.3, TBT: 600}}

	if _, err := NewAuditor(5*time.Second, metrics).Audit(context.Background(), base+"/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.strategy != pagespeed.StrategyMobile {
		t.Errorf("expected mobile by default, got %q", metrics.strategy)
	}

	if _, err := NewAuditor(5*time.Second, metrics).WithStrategy(pagespeed.StrategyDesktop).Audit(context.Background(), base+"/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.strategy != pagespeed.StrategyDesktop {
		t.Errorf("expected desktop, got %q", metrics.strategy)
	}
}
