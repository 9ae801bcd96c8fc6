package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/rest/middleware"
)

type mockDecayUsecase struct{ mock.Mock }

func (m *mockDecayUsecase) Run(ctx context.Context, w domain.Window, now time.Time) ([]domain.DecayResult, error) {
	args := m.Called(ctx, w, now)
	return args.Get(0).([]domain.DecayResult), args.Error(1)
}

func (m *mockDecayUsecase) DecayBucket(ctx context.Context, w domain.Window, start time.Time) (domain.DecayResult, error) {
	args := m.Called(ctx, w, start)
	return args.Get(0).(domain.DecayResult), args.Error(1)
}

type mockSyncer struct{ mock.Mock }

func (m *mockSyncer) ApplyLikeDelta(ctx context.Context, d domain.LikeDelta) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockSyncer) Reconcile(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

const adminToken = "s3cret"

func (f *fixture) asAdmin(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(middleware.HeaderAdminToken, adminToken)
	w := httptest.NewRecorder()
	f.route.ServeHTTP(w, req)
	return w
}

func TestRunDecay(t *testing.T) {
	f := newFixture(t, RouterConfig{AdminToken: adminToken})
	now := time.Date(2026, 10, 18, 10, 30, 0, 0, time.UTC)
	f.admin.now = func() time.Time { return now }

	f.decay.On("Run", mock.Anything, domain.WindowDay, now).Return([]domain.DecayResult{
		{Window: domain.WindowDay, BucketStart: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC), Items: 3},
	}, nil).Once()

	w := f.asAdmin(http.MethodPost, "/admin/decay/day")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"window":"day","bucketStart":"2026-10-17T09:00:00Z","items":3,"failed":0}]`, w.Body.String())

	f.decay.On("Run", mock.Anything, domain.WindowWeek, now).Return([]domain.DecayResult(nil), domain.ErrCursorConflict).Once()
	assert.Equal(t, http.StatusConflict, f.asAdmin(http.MethodPost, "/admin/decay/week").Code)

	assert.Equal(t, http.StatusBadRequest, f.asAdmin(http.MethodPost, "/admin/decay/month").Code)
}

func TestReplayBucket(t *testing.T) {
	f := newFixture(t, RouterConfig{AdminToken: adminToken})
	start := time.Date(2026, 10, 11, 4, 0, 0, 0, time.UTC)
	f.decay.On("DecayBucket", mock.Anything, domain.WindowWeek, mock.MatchedBy(start.Equal)).
		Return(domain.DecayResult{Window: domain.WindowWeek, BucketStart: start, Items: 2, Failed: 1}, nil).Once()

	w := f.asAdmin(http.MethodPost, "/admin/decay/week?bucket=2026-10-11T04:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"window":"week","bucketStart":"2026-10-11T04:00:00Z","items":2,"failed":1}]`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.asAdmin(http.MethodPost, "/admin/decay/week?bucket=2026-10-11T04:30:00Z").Code)
	assert.Equal(t, http.StatusBadRequest, f.asAdmin(http.MethodPost, "/admin/decay/week?bucket=yesterday").Code)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t, RouterConfig{AdminToken: adminToken})
	f.syncer.On("Reconcile", mock.Anything, "item-1").Return(nil).Once()
	f.syncer.On("Reconcile", mock.Anything, "gone").Return(domain.ErrNotFound).Once()

	assert.Equal(t, http.StatusNoContent, f.asAdmin(http.MethodPost, "/admin/items/item-1/reconcile").Code)
	assert.Equal(t, http.StatusNotFound, f.asAdmin(http.MethodPost, "/admin/items/gone/reconcile").Code)
}

func TestAdminRoutesNeedToken(t *testing.T) {
	f := newFixture(t, RouterConfig{AdminToken: adminToken})
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/admin/decay/day", "alice", nil).Code)

	disabled := newFixture(t, RouterConfig{})
	assert.Equal(t, http.StatusNotFound, disabled.asAdmin(http.MethodPost, "/admin/decay/day").Code)
}
