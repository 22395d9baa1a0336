package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.CyclesTotal.Inc()
	m.OrdersCopied.WithLabelValues("BTC", "buy").Inc()
	m.CopyRatio.Set(0.1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"copytrader_cycles_total 1",
		`copytrader_orders_copied_total{side="buy",symbol="BTC"} 1`,
		"copytrader_copy_ratio 0.1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	// 两个实例各自持有 registry，重复注册不应 panic
	a := New()
	b := New()
	a.CyclesTotal.Inc()
	a.CyclesTotal.Inc()
	b.CyclesTotal.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "copytrader_cycles_total 1") {
		t.Fatalf("registries must be independent:\n%s", rec.Body.String())
	}
}
