package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
	"github.com/wfunc/serial-looptest/internal/looptest"
	"github.com/wfunc/serial-looptest/internal/models"
	"github.com/wfunc/serial-looptest/internal/repository"
)

func TestMeasurementService_Record(t *testing.T) {
	db := repository.SetupTestDB()
	defer repository.CleanupTestDB(db)

	svc := NewMeasurementService(db, "COM10", 2400, "./data/payload.txt")
	require.NotEmpty(t, svc.SessionID())

	start := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	m := looptest.NewMeasurement(start, start.Add(2*time.Second), 2, "AB")

	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, m))

	// 满足 looptest.Recorder
	var _ looptest.Recorder = svc

	list, total, err := svc.Query(ctx, &models.MeasurementQuery{SessionID: svc.SessionID()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, "COM10", got.Port)
	assert.Equal(t, 2400, got.BaudRate)
	assert.Equal(t, 16, got.BitsSent)
	assert.InDelta(t, 8.0, got.Rate, 1e-9)
	assert.Equal(t, 2*time.Second, got.Elapsed())
	assert.Equal(t, 2, got.RespLength)

	again, err := svc.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "AB", again.Response)
}

func TestMeasurementService_RecordNil(t *testing.T) {
	db := repository.SetupTestDB()
	defer repository.CleanupTestDB(db)

	svc := NewMeasurementService(db, "COM10", 2400, "")
	err := svc.Record(context.Background(), nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestMeasurementService_GetNotFound(t *testing.T) {
	db := repository.SetupTestDB()
	defer repository.CleanupTestDB(db)

	svc := NewMeasurementService(db, "COM10", 2400, "")
	_, err := svc.Get(context.Background(), 42)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestMeasurementService_LatestAndStats(t *testing.T) {
	db := repository.SetupTestDB()
	defer repository.CleanupTestDB(db)

	svc := NewMeasurementService(db, "COM10", 2400, "")
	ctx := context.Background()
	start := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		begin := start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, svc.Record(ctx, looptest.NewMeasurement(begin, begin.Add(time.Duration(i)*time.Second), 1, "x")))
	}

	latest, err := svc.Latest(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, latest, 3)
	assert.InDelta(t, 8.0/3.0, latest[0].Rate, 1e-9)

	stats, err := svc.Stats(ctx, &models.MeasurementQuery{SessionID: svc.SessionID()})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(24), stats.TotalBits)
	assert.InDelta(t, 8.0, stats.MaxRate, 1e-9)

	_, err = svc.Cleanup(ctx, 0)
	assert.True(t, apperrors.Is(err, apperrors.ErrDatabaseDelete))

	n, err := svc.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, n)
}
