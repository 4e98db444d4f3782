package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		runs     int
		opts     []CheckOption
		wantCode int
		wantBody string
	}{
		{name: "not yet run", runs: 0, wantCode: http.StatusOK, wantBody: `{"status":"ok"}`},
		{name: "below threshold", runs: 2, wantCode: http.StatusOK, wantBody: `{"status":"ok"}`},
		{
			name:     "at threshold",
			runs:     3,
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"status":"unhealthy","checks":{"postgres":"ping postgres: connection refused"}}`,
		},
		{
			name:     "custom threshold",
			runs:     1,
			opts:     []CheckOption{WithThresholds(1, 1)},
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"status":"unhealthy","checks":{"postgres":"ping postgres: connection refused"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("postgres", time.Second,
				PingCheck("postgres", fakePinger{err: errors.New("connection refused")}), tt.opts...)
			for range tt.runs {
				h.liveness[0].run(t.Context())
			}

			w := serve(h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestCheck_Recovers(t *testing.T) {
	p := &fakePinger{err: errors.New("down")}
	h := New()
	h.AddReadinessCheck("redis", time.Second, func(ctx context.Context) error { return p.Ping(ctx) },
		WithThresholds(1, 2))
	h.SetReady(true)
	c := h.readiness[0]

	c.run(t.Context())
	assert.False(t, h.IsReady())

	p.err = nil
	c.run(t.Context())
	assert.False(t, h.IsReady(), "needs two successes")
	c.run(t.Context())
	assert.True(t, h.IsReady())
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, PingCheck("postgres", fakePinger{}))

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	w = serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithThresholds(1, 1))
	h.readiness[0].run(t.Context())

	h.SetReady(true)
	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "deadline exceeded")
}

func TestStart_RunsChecks(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(0), WithThresholds(1, 1))
	h.Start(t.Context(), time.Hour)
	defer h.Stop()

	require.Eventually(t, func() bool {
		return serve(h.LiveEndpoint).Code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()
}
