package e2e

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/odyssey-erp/stockgate/internal/jobs"
	"github.com/odyssey-erp/stockgate/internal/observability"
)

type alertFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert string `yaml:"alert"`
			Expr  string `yaml:"expr"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`stockgate_[a-z_]+`)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

// Every series an alert fires on must be exported by the gateway or the worker.
func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	gateway := observability.NewMetrics()
	gateway.ObserveDecision("delivery", "create", "denied")
	gateway.ObserveSnapshot("miss")
	gateway.ObserveBackendError("unavailable")

	reg := prometheus.NewRegistry()
	worker := jobmetrics.NewMetrics(reg)
	_ = worker.Track("snapshot:warmup").End(nil)
	worker.SetSnapshotSize(1)

	exported := scrape(t, gateway.Handler()) + scrape(t, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "stockgate.yml"))
	require.NoError(t, err)
	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.NotEmpty(t, file.Groups)

	for _, group := range file.Groups {
		for _, rule := range group.Rules {
			names := metricName.FindAllString(rule.Expr, -1)
			require.NotEmpty(t, names, rule.Alert)
			for _, name := range names {
				require.Contains(t, exported, "# TYPE "+name+" ", "alert %s references %s", rule.Alert, name)
			}
		}
	}
}
