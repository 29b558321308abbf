package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockgate/internal/backend"
	jobmetrics "github.com/odyssey-erp/stockgate/internal/jobs"
	"github.com/odyssey-erp/stockgate/internal/snapshot"
)

type stubRefresher struct {
	tokens []string
	err    error
}

func (s *stubRefresher) Refresh(ctx context.Context, token string) (*snapshot.Snapshot, error) {
	s.tokens = append(s.tokens, token)
	if s.err != nil {
		return nil, s.err
	}
	return snapshot.New([]backend.Product{{ID: 1}, {ID: 2}, {ID: 3}}, time.Now()), nil
}

func warmupTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewSnapshotWarmupTask("")
	require.NoError(t, err)
	return task
}

func TestSnapshotWarmupRefreshes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	refresher := &stubRefresher{}
	job := NewSnapshotWarmupJob(refresher, "svc-token", nil, metrics)

	require.NoError(t, job.Handle(context.Background(), warmupTask(t)))
	require.Equal(t, []string{"svc-token"}, refresher.tokens)

	count, err := testutil.GatherAndCount(reg, "stockgate_jobs_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Contains(t, gatherText(t, reg), "stockgate_snapshot_products 3")
}

func TestSnapshotWarmupSkipsWithoutToken(t *testing.T) {
	refresher := &stubRefresher{}
	job := NewSnapshotWarmupJob(refresher, "", nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), warmupTask(t)))
	require.Empty(t, refresher.tokens)
}

func TestSnapshotWarmupFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	job := NewSnapshotWarmupJob(&stubRefresher{err: backend.ErrUnavailable}, "svc-token", nil, metrics)
	err := job.Handle(context.Background(), warmupTask(t))
	require.ErrorIs(t, err, backend.ErrUnavailable)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	job = NewSnapshotWarmupJob(&stubRefresher{err: backend.ErrUnauthorized}, "svc-token", nil, metrics)
	err = job.Handle(context.Background(), warmupTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.Contains(t, gatherText(t, reg), `stockgate_jobs_failures_total{job="snapshot:warmup"} 2`)
}

func TestSnapshotWarmupRejectsBadPayload(t *testing.T) {
	job := NewSnapshotWarmupJob(&stubRefresher{}, "svc-token", nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskSnapshotWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"failed_today":0,"processed_today":0}`, rr.Body.String())
}

func gatherText(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}
