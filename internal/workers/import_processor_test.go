// internal/workers/import_processor_test.go
package workers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/salesflow-be/internal/adapters/memory"
	"github.com/ammerola/salesflow-be/internal/adapters/storage"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/services"
	"github.com/ammerola/salesflow-be/internal/workers"
	"github.com/ammerola/salesflow-be/test/helpers"
	"github.com/ammerola/salesflow-be/test/mocks"
)

// jobStore keeps jobs in a map
type jobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.ImportJob
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]domain.ImportJob)}
}

func (s *jobStore) Save(_ context.Context, job *domain.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *jobStore) Get(_ context.Context, id string) (*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func importTask(t *testing.T, p workers.ImportPayload) *asynq.Task {
	t.Helper()
	task, err := workers.NewImportTask(p)
	require.NoError(t, err)
	return task
}

func TestImportProcessor_ProcessImport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := helpers.TestLogger()

	store := memory.NewStore()
	products := store.Products()
	beans := &domain.Product{SKU: "BEANS-1", Name: "Espresso Beans", Price: decimal.RequireFromString("24.90"), StockQuantity: 10, LowStockThreshold: 2}
	milk := &domain.Product{SKU: "MILK-1", Name: "Oat Milk 1L", Price: decimal.RequireFromString("2.40"), StockQuantity: 5, LowStockThreshold: 1}
	require.NoError(t, products.Create(ctx, beans))
	require.NoError(t, products.Create(ctx, milk))

	sales := services.NewSaleService(products, store.Sales(), store.UnitOfWork(), memory.NewKeyedLocker(time.Second), logger)
	reconciler := services.NewBatchReconciler(sales, store.SyncLogs(), services.ReconcilerConfig{MaxBatchSize: 100}, logger)

	files, err := storage.NewLocalStorage(t.TempDir(), logger)
	require.NoError(t, err)
	jobs := newJobStore()

	csv := "sku,name,quantity,sale_ref\n" +
		"BEANS-1,,2,R1\n" + // row 2
		"MILK-1,,1,R1\n" + // row 3
		",oat milk 1l,1,\n" + // row 4
		"BEANS-1,,100,\n" + // row 5: insufficient stock
		"MILK-1,,x,R2\n" + // row 6: bad quantity
		"BEANS-1,,1,R2\n" + // row 7: dropped with R2
		",Flat White Cup,1,\n" // row 8: unknown name
	key := workers.ImportPrefix + "job-1_sales.csv"
	_, err = files.Upload(ctx, key, bytes.NewBufferString(csv), "text/csv")
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	invalidator := mocks.NewMockCacheInvalidator(ctrl)
	invalidator.EXPECT().InvalidateSales(gomock.Any())

	processor := workers.NewImportProcessor(reconciler, products, files, jobs, invalidator, 0, logger)

	err = processor.ProcessImport(ctx, importTask(t, workers.ImportPayload{
		JobID: "job-1", FileKey: key, FileName: "sales.csv", Actor: "manager-1",
	}))
	require.NoError(t, err)

	job, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	require.NotNil(t, job.Outcome)
	assert.Equal(t, domain.BatchPartial, job.Outcome.Status)
	assert.Len(t, job.Outcome.Successes, 2)
	require.Len(t, job.Outcome.Conflicts, 1)
	assert.Equal(t, domain.ReasonInsufficientStock, job.Outcome.Conflicts[0].Reason)

	errRows := make([]int, 0, len(job.RowErrors))
	for _, re := range job.RowErrors {
		errRows = append(errRows, re.Row)
	}
	assert.ElementsMatch(t, []int{5, 6, 7, 8}, errRows)

	gotBeans, err := products.FindByID(ctx, beans.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, gotBeans.StockQuantity)
	gotMilk, err := products.FindByID(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, gotMilk.StockQuantity)

	recorded, err := store.Sales().ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	for _, s := range recorded {
		assert.Equal(t, domain.SourceBulkImport, s.Source)
		assert.Equal(t, "manager-1", s.CreatedBy)
	}

	_, err = files.Download(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound, "imported file should be removed")

	logs, err := store.SyncLogs().ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestImportProcessor_ProcessImport_Failures(t *testing.T) {
	tests := []struct {
		name         string
		fileName     string
		setupMocks   func(files *mocks.MockFileStorage, reconciler *mocks.MockBatchReconciler)
		wantSkip     bool
		wantStatus   domain.JobStatus
		errorMessage string
	}{
		{
			name:     "missing_upload_is_final",
			fileName: "sales.csv",
			setupMocks: func(files *mocks.MockFileStorage, _ *mocks.MockBatchReconciler) {
				files.EXPECT().Download(gomock.Any(), gomock.Any()).Return(nil, domain.ErrNotFound)
			},
			wantSkip:     true,
			wantStatus:   domain.JobFailed,
			errorMessage: "uploaded file is gone",
		},
		{
			name:     "storage_outage_on_last_attempt_marks_failed",
			fileName: "sales.csv",
			setupMocks: func(files *mocks.MockFileStorage, _ *mocks.MockBatchReconciler) {
				files.EXPECT().Download(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
			},
			wantSkip:     false,
			wantStatus:   domain.JobFailed,
			errorMessage: "failed to download file",
		},
		{
			name:     "bad_header_is_final",
			fileName: "sales.csv",
			setupMocks: func(files *mocks.MockFileStorage, _ *mocks.MockBatchReconciler) {
				files.EXPECT().Download(gomock.Any(), gomock.Any()).Return([]byte("foo,bar\n1,2\n"), nil)
			},
			wantSkip:     true,
			wantStatus:   domain.JobFailed,
			errorMessage: "quantity column",
		},
		{
			name:     "persistence_failure_is_not_retried",
			fileName: "sales.csv",
			setupMocks: func(files *mocks.MockFileStorage, reconciler *mocks.MockBatchReconciler) {
				files.EXPECT().Download(gomock.Any(), gomock.Any()).Return([]byte("sku,quantity\nA,1\n"), nil)
				reconciler.EXPECT().
					Reconcile(gomock.Any(), gomock.Any()).
					Return(nil, errors.Join(domain.ErrPersistence, errors.New("disk full")))
			},
			wantSkip:     true,
			wantStatus:   domain.JobFailed,
			errorMessage: "persistence failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			files := mocks.NewMockFileStorage(ctrl)
			reconciler := mocks.NewMockBatchReconciler(ctrl)
			products := mocks.NewMockProductRepository(ctrl)
			jobs := newJobStore()
			tt.setupMocks(files, reconciler)

			processor := workers.NewImportProcessor(reconciler, products, files, jobs, nil, 0, helpers.TestLogger())

			err := processor.ProcessImport(context.Background(), importTask(t, workers.ImportPayload{
				JobID: "job-2", FileKey: "imports/job-2_" + tt.fileName, FileName: tt.fileName,
			}))

			require.Error(t, err)
			assert.Equal(t, tt.wantSkip, errors.Is(err, asynq.SkipRetry))

			job, gerr := jobs.Get(context.Background(), "job-2")
			require.NoError(t, gerr)
			assert.Equal(t, tt.wantStatus, job.Status)
			assert.Contains(t, job.Error, tt.errorMessage)
		})
	}
}

func TestImportProcessor_ProcessImport_ChunksLargeFiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	files := mocks.NewMockFileStorage(ctrl)
	reconciler := mocks.NewMockBatchReconciler(ctrl)
	jobs := newJobStore()

	files.EXPECT().Download(gomock.Any(), gomock.Any()).Return([]byte("sku,quantity\nA,1\nB,1\nC,1\n"), nil)
	files.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)

	var calls [][]string
	reconciler.EXPECT().
		Reconcile(gomock.Any(), gomock.Any()).
		Times(2).
		DoAndReturn(func(_ context.Context, req *domain.BatchRequest) (*domain.BatchOutcome, error) {
			var skus []string
			results := make([]domain.ItemOutcome, len(req.Sales))
			for i, s := range req.Sales {
				skus = append(skus, s.Items[0].SKU)
				results[i] = domain.ItemOutcome{Index: i, SaleID: int64(len(calls)*10 + i + 1)}
				if s.Items[0].SKU == "C" {
					results[i] = domain.ItemOutcome{Index: i, Reason: domain.ReasonNotFound, Message: "not found"}
				}
			}
			calls = append(calls, skus)
			return domain.NewBatchOutcome(req, results, time.Now()), nil
		})

	processor := workers.NewImportProcessor(reconciler, mocks.NewMockProductRepository(ctrl), files, jobs, nil, 2, helpers.TestLogger())

	require.NoError(t, processor.ProcessImport(context.Background(), importTask(t, workers.ImportPayload{
		JobID: "job-3", FileKey: "imports/job-3_sales.csv", FileName: "sales.csv",
	})))

	assert.Equal(t, [][]string{{"A", "B"}, {"C"}}, calls)

	job, err := jobs.Get(context.Background(), "job-3")
	require.NoError(t, err)
	require.NotNil(t, job.Outcome)
	assert.Len(t, job.Outcome.Successes, 2)
	require.Len(t, job.Outcome.Conflicts, 1)
	assert.Equal(t, 2, job.Outcome.Conflicts[0].Index)
	require.Len(t, job.RowErrors, 1)
	assert.Equal(t, 4, job.RowErrors[0].Row)
}

func TestImportProcessor_ProcessImport_AbortKeepsCommittedOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	files := mocks.NewMockFileStorage(ctrl)
	reconciler := mocks.NewMockBatchReconciler(ctrl)
	jobs := newJobStore()

	files.EXPECT().Download(gomock.Any(), gomock.Any()).
		Return([]byte("sku,quantity\nA,1\nB,1\nC,1\nD,1\nE,1\n"), nil)

	gomock.InOrder(
		reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *domain.BatchRequest) (*domain.BatchOutcome, error) {
				return domain.NewBatchOutcome(req, []domain.ItemOutcome{
					{Index: 0, SaleID: 1},
					{Index: 1, SaleID: 2},
				}, time.Now()), nil
			}),
		reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *domain.BatchRequest) (*domain.BatchOutcome, error) {
				return domain.NewAbortedBatchOutcome(req, []domain.ItemOutcome{
					{Index: 0, SaleID: 3},
					{Index: 1, Reason: domain.ReasonPersistence, Message: "disk full"},
				}, []bool{true, true}, time.Now()), errors.Join(domain.ErrPersistence, errors.New("disk full"))
			}),
	)

	processor := workers.NewImportProcessor(reconciler, mocks.NewMockProductRepository(ctrl), files, jobs, nil, 2, helpers.TestLogger())

	err := processor.ProcessImport(context.Background(), importTask(t, workers.ImportPayload{
		JobID: "job-4", FileKey: "imports/job-4_sales.csv", FileName: "sales.csv",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	job, gerr := jobs.Get(context.Background(), "job-4")
	require.NoError(t, gerr)
	assert.Equal(t, domain.JobFailed, job.Status)
	require.NotNil(t, job.Outcome)
	assert.Equal(t, domain.BatchFailed, job.Outcome.Status)

	var committed []int64
	for _, s := range job.Outcome.Successes {
		committed = append(committed, s.SaleID)
	}
	assert.Equal(t, []int64{1, 2, 3}, committed)

	require.Len(t, job.Outcome.Unprocessed, 2)
	assert.Equal(t, 3, job.Outcome.Unprocessed[0].Index)
	assert.Equal(t, domain.ReasonPersistence, job.Outcome.Unprocessed[0].Reason)
	assert.Equal(t, 4, job.Outcome.Unprocessed[1].Index)
	assert.Equal(t, domain.ReasonNotProcessed, job.Outcome.Unprocessed[1].Reason)
}

func TestImportProcessor_ProcessImport_BadPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	processor := workers.NewImportProcessor(
		mocks.NewMockBatchReconciler(ctrl), mocks.NewMockProductRepository(ctrl),
		mocks.NewMockFileStorage(ctrl), newJobStore(), nil, 0, helpers.TestLogger())

	err := processor.ProcessImport(context.Background(), asynq.NewTask(workers.TypeSalesImport, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestImportPayload_RoundTripsActor(t *testing.T) {
	task := importTask(t, workers.ImportPayload{JobID: "j", FileKey: "k", FileName: "f.csv", Actor: "a"})
	var p workers.ImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "a", p.Actor)
	assert.Equal(t, workers.TypeSalesImport, task.Type())
}
