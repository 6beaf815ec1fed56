package services

import (
	"context"
	"fmt"
	"safegate/models"
	"safegate/utils"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReportService_ListActiveNewestFirstLimited(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryReportService()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		_, err := remote.CreateReport(ctx, testReport(fmt.Sprintf("EMG-%02d", i), base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	require.NoError(t, remote.UpdateStatus(ctx, "EMG-11", models.ReportStatusResolved, "staff-1", ""))

	active, err := remote.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 10)
	assert.Equal(t, "EMG-10", active[0].ID)
	assert.Equal(t, "EMG-01", active[9].ID)
}

func TestMemoryReportService_ListByReporter(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryReportService()
	base := time.Now()

	for i := 0; i < 25; i++ {
		report := testReport(fmt.Sprintf("EMG-%02d", i), base.Add(time.Duration(i)*time.Second))
		if i%5 == 0 {
			report.Reporter.UID = "someone-else"
		}
		_, err := remote.CreateReport(ctx, report)
		require.NoError(t, err)
	}

	mine, err := remote.ListByReporter(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 20)
	for _, r := range mine {
		assert.Equal(t, "user-1", r.Reporter.UID)
	}

	none, err := remote.ListByReporter(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryReportService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryReportService()
	_, err := remote.CreateReport(ctx, testReport("EMG-1", time.Now()))
	require.NoError(t, err)

	require.NoError(t, remote.UpdateStatus(ctx, "EMG-1", models.ReportStatusAssigned, "guard-7", "on the way"))
	require.NoError(t, remote.UpdateStatus(ctx, "EMG-1", models.ReportStatusResolved, "guard-7", ""))

	report, ok := remote.Get("EMG-1")
	require.True(t, ok)
	assert.Equal(t, models.ReportStatusResolved, report.Status)
	assert.Equal(t, "guard-7", report.AssignedTo)
	assert.Equal(t, "guard-7", report.ResolvedBy)
	require.NotNil(t, report.ResolvedAt)
	require.Len(t, report.Timeline, 2)
	assert.Equal(t, "on the way", report.Timeline[0].Notes)

	err = remote.UpdateStatus(ctx, "EMG-404", models.ReportStatusResolved, "guard-7", "")
	serviceErr, isService := utils.GetServiceError(err)
	require.True(t, isService)
	assert.Equal(t, 404, serviceErr.StatusCode)

	err = remote.UpdateStatus(ctx, "EMG-1", "closed", "guard-7", "")
	serviceErr, isService = utils.GetServiceError(err)
	require.True(t, isService)
	assert.Equal(t, 400, serviceErr.StatusCode)
}

func TestMemoryReportService_StoredCopyIsIsolated(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryReportService()
	report := testReport("EMG-1", time.Now())
	_, err := remote.CreateReport(ctx, report)
	require.NoError(t, err)

	report.Description = "mutated after create"
	stored, _ := remote.Get("EMG-1")
	assert.Empty(t, stored.Description)
}

func TestMemoryReportService_SubscribeReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remote := NewMemoryReportService()
	_, err := remote.CreateReport(ctx, testReport("EMG-1", time.Now()))
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []models.ReportStatus
	unsubscribe, err := remote.SubscribeReport(ctx, "EMG-1", func(r *models.EmergencyReport) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Status)
	}, nil)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond, "initial snapshot")

	require.NoError(t, remote.UpdateStatus(ctx, "EMG-1", models.ReportStatusAssigned, "guard-7", ""))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2 && seen[len(seen)-1] == models.ReportStatusAssigned
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
}

func TestMemoryReportService_AttachPhoto(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryReportService()
	_, err := remote.CreateReport(ctx, testReport("EMG-1", time.Now()))
	require.NoError(t, err)

	require.NoError(t, remote.AttachPhoto(ctx, "EMG-1", models.EmergencyPhoto{URL: "/uploads/a.jpg"}))
	report, _ := remote.Get("EMG-1")
	require.Len(t, report.Photos, 1)

	assert.Error(t, remote.AttachPhoto(ctx, "EMG-404", models.EmergencyPhoto{}))
}

func TestMemoryReportService_CreateDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryReportService()
	report := testReport("EMG-1", time.Now())
	_, err := remote.CreateReport(ctx, report)
	require.NoError(t, err)
	require.NoError(t, remote.UpdateStatus(ctx, "EMG-1", models.ReportStatusAssigned, "responder-9", ""))

	id, err := remote.CreateReport(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, "EMG-1", id)

	stored, _ := remote.Get("EMG-1")
	assert.Equal(t, models.ReportStatusAssigned, stored.Status)
	assert.Equal(t, "responder-9", stored.AssignedTo)
}

func TestMemoryReportService_LocationHistory(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryReportService()
	_, err := remote.CreateReport(ctx, testReport("EMG-1", time.Now()))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, remote.AppendLocation(ctx, "EMG-1", models.GeoFix{Latitude: testCampusLat + float64(i)*0.001, Longitude: testCampusLng, AccuracyMeters: 10}))
	}

	history, err := remote.LocationHistory(ctx, "EMG-1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.InDelta(t, testCampusLat+0.002, history[0].Fix.Latitude, 1e-9)
	assert.InDelta(t, testCampusLat+0.001, history[1].Fix.Latitude, 1e-9)

	history, err = remote.LocationHistory(ctx, "EMG-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	history, err = remote.LocationHistory(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
