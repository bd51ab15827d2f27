// internal/handlers/sync_handler_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/handlers"
	"github.com/ammerola/salesflow-be/internal/workers"
	"github.com/ammerola/salesflow-be/test/helpers"
	"github.com/ammerola/salesflow-be/test/mocks"
)

const offlineBody = `{"offline_sales":[{"items":[{"sku":"SKU-1","quantity":1}]}],"last_sync_timestamp":"2026-03-01T08:00:00Z"}`

func TestSyncHandler_Sync(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(sync *mocks.MockSyncService, jobs *mocks.MockJobStore, inv *mocks.MockCacheInvalidator)
		expectedStatus int
		expectTask     bool
	}{
		{
			name: "inline_sync",
			setupMocks: func(sync *mocks.MockSyncService, _ *mocks.MockJobStore, inv *mocks.MockCacheInvalidator) {
				sync.EXPECT().
					Sync(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req *domain.SyncRequest) (*domain.SyncResponse, error) {
						assert.Equal(t, "tablet-3", req.Actor)
						require.Len(t, req.OfflineSales, 1)
						require.NotNil(t, req.LastSyncTimestamp)
						outcome := domain.NewBatchOutcome(&domain.BatchRequest{Actor: req.Actor, Source: domain.SourceOfflineSync},
							[]domain.ItemOutcome{{Index: 0, SaleID: 5}}, time.Now())
						return &domain.SyncResponse{Outcome: outcome, NewSyncTimestamp: time.Now(), UpdatedProducts: []*domain.Product{}}, nil
					})
				inv.EXPECT().InvalidateSales(gomock.Any())
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "async_sync_is_queued",
			query: "?async=true",
			setupMocks: func(_ *mocks.MockSyncService, jobs *mocks.MockJobStore, _ *mocks.MockCacheInvalidator) {
				jobs.EXPECT().
					Save(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, job *domain.ImportJob) error {
						assert.Equal(t, domain.JobPending, job.Status)
						assert.Equal(t, "tablet-3", job.Actor)
						return nil
					})
			},
			expectedStatus: http.StatusAccepted,
			expectTask:     true,
		},
		{
			name: "validation_failure",
			setupMocks: func(sync *mocks.MockSyncService, _ *mocks.MockJobStore, _ *mocks.MockCacheInvalidator) {
				sync.EXPECT().
					Sync(gomock.Any(), gomock.Any()).
					Return(nil, domain.NewValidationError(-1, "batch exceeds 1000 sales"))
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			sync := mocks.NewMockSyncService(ctrl)
			jobs := mocks.NewMockJobStore(ctrl)
			inv := mocks.NewMockCacheInvalidator(ctrl)
			enq := &fakeEnqueuer{}
			tt.setupMocks(sync, jobs, inv)

			handler := handlers.NewSyncHandler(sync, enq, jobs, inv, helpers.TestLogger())

			req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/sync"+tt.query, bytes.NewBufferString(offlineBody)), "tablet-3")
			w := httptest.NewRecorder()
			handler.Sync(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if !tt.expectTask {
				assert.Empty(t, enq.tasks)
				return
			}

			require.Len(t, enq.tasks, 1)
			assert.Equal(t, workers.TypeSalesSync, enq.tasks[0].Type())
			var payload workers.SyncPayload
			require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
			assert.Equal(t, "tablet-3", payload.Actor)
			assert.Len(t, payload.Request.OfflineSales, 1)
		})
	}
}

func TestSyncHandler_Sync_AsyncFallsBackWithoutQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	sync := mocks.NewMockSyncService(ctrl)
	sync.EXPECT().
		Sync(gomock.Any(), gomock.Any()).
		Return(&domain.SyncResponse{Outcome: &domain.BatchOutcome{Status: domain.BatchSuccess}}, nil)

	handler := handlers.NewSyncHandler(sync, nil, nil, nil, helpers.TestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync?async=true", bytes.NewBufferString(offlineBody))
	w := httptest.NewRecorder()
	handler.Sync(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSyncHandler_Changes(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(sync *mocks.MockSyncService)
		expectedStatus int
	}{
		{
			name:  "lists_products_changed_since",
			query: "?since=2026-03-01T08:00:00Z",
			setupMocks: func(sync *mocks.MockSyncService) {
				sync.EXPECT().
					ChangesSince(gomock.Any(), time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)).
					Return([]*domain.Product{helpers.CreateTestProduct()}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "since_is_required",
			setupMocks:     func(*mocks.MockSyncService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			sync := mocks.NewMockSyncService(ctrl)
			tt.setupMocks(sync)

			handler := handlers.NewSyncHandler(sync, nil, nil, nil, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/changes"+tt.query, nil)
			w := httptest.NewRecorder()
			handler.Changes(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestSyncHandler_Logs(t *testing.T) {
	ctrl := gomock.NewController(t)
	sync := mocks.NewMockSyncService(ctrl)
	sync.EXPECT().
		RecentLogs(gomock.Any(), 10).
		Return([]*domain.SyncLog{{ID: 1, Status: domain.BatchPartial, SuccessCount: 3, ConflictCount: 1}}, nil)

	handler := handlers.NewSyncHandler(sync, nil, nil, nil, helpers.TestLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/logs?limit=10", nil)
	w := httptest.NewRecorder()
	handler.Logs(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Logs []domain.SyncLog `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, domain.BatchPartial, resp.Logs[0].Status)
}
