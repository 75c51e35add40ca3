package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/gym-backoffice-api/pkg/errors"
)

type rosterHarness struct {
	*enrollmentHarness
	rosters *fakeRosterRepo
	svc     *AttendanceRosterService
}

// newRosterHarness prepares off-1 running on Mondays throughout January 2024.
func newRosterHarness(maxRangeDays int) *rosterHarness {
	base := newEnrollmentHarness(10)
	offering, _ := base.offerings.FindByID(context.Background(), "off-1")
	offering.ValidUntil = datePtr(models.NewDate(2024, time.January, 31))
	base.offerings.put(*offering)
	base.svc.now = func() time.Time { return time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC) }

	rosters := newFakeRosterRepo()
	rosters.source = base.enrollments
	cache := NewCacheService(base.cache, nil, time.Minute, nil, true)
	svc := NewAttendanceRosterService(rosters, base.offerings, base.enrollments, base.hooks, cache, NewMetricsService(), nil, nil, maxRangeDays)
	return &rosterHarness{enrollmentHarness: base, rosters: rosters, svc: svc}
}

func rangeReq(from, to models.Date) dto.GenerateRostersRequest {
	return dto.GenerateRostersRequest{From: &from, To: &to}
}

func TestAttendanceRosterServiceGenerateRangeMondays(t *testing.T) {
	h := newRosterHarness(0)
	ctx := context.Background()
	_, err := h.enrollmentHarness.svc.Enroll(ctx, enrollReq("cli-a"))
	require.NoError(t, err)

	jan1, jan31 := models.NewDate(2024, time.January, 1), models.NewDate(2024, time.January, 31)
	result, err := h.svc.GenerateRange(ctx, "off-1", rangeReq(jan1, jan31))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)
	assert.Equal(t, 0, result.Existing)
	assert.Equal(t, 26, result.Skipped)
	assert.Empty(t, result.Errors)

	summaries, err := h.svc.ListRosters(ctx, "off-1", dto.RosterListFilter{})
	require.NoError(t, err)
	require.Len(t, summaries, 5)
	assert.Equal(t, "2024-01-29", summaries[0].Date.String())
	for _, s := range summaries {
		assert.Equal(t, time.Monday, s.Date.Weekday())
		assert.Equal(t, 1, s.TotalItems)
	}

	again, err := h.svc.GenerateRange(ctx, "off-1", rangeReq(jan1, jan31))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 5, again.Existing)
	assert.Equal(t, 26, again.Skipped)
	assert.Len(t, h.rosters.rosters, 5)
	assert.Len(t, h.hooks.rosters, 5)
}

func TestAttendanceRosterServiceGenerateRangeValidation(t *testing.T) {
	h := newRosterHarness(30)
	ctx := context.Background()
	jan1 := models.NewDate(2024, time.January, 1)

	_, err := h.svc.GenerateRange(ctx, "off-1", rangeReq(jan1, jan1.AddDays(30)))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = h.svc.GenerateRange(ctx, "off-1", rangeReq(jan1.AddDays(5), jan1))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = h.svc.GenerateRange(ctx, "missing", rangeReq(jan1, jan1.AddDays(6)))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = h.svc.GenerateRange(ctx, "off-1", dto.GenerateRostersRequest{From: &jan1})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAttendanceRosterServiceGenerateRangeReportsPerDateErrors(t *testing.T) {
	h := newRosterHarness(0)
	ctx := context.Background()
	h.rosters.failDates["2024-01-15"] = errors.New("disk full")

	result, err := h.svc.GenerateRange(ctx, "off-1", rangeReq(models.NewDate(2024, time.January, 1), models.NewDate(2024, time.January, 31)))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "2024-01-15", result.Errors[0].Date.String())
	assert.Contains(t, result.Errors[0].Reason, "disk full")
}

func TestAttendanceRosterServiceCreateRoster(t *testing.T) {
	h := newRosterHarness(0)
	ctx := context.Background()
	_, err := h.enrollmentHarness.svc.Enroll(ctx, enrollReq("cli-b"))
	require.NoError(t, err)
	dependent := enrollReq("cli-b")
	dependent.Participant = &models.Participant{Name: "Alice", Document: "999"}
	_, err = h.enrollmentHarness.svc.Enroll(ctx, dependent)
	require.NoError(t, err)

	monday := models.NewDate(2024, time.January, 8)
	created, err := h.svc.CreateRoster(ctx, dto.CreateRosterRequest{OfferingID: "off-1", Date: &monday, GeneralNote: "warm-up"})
	require.NoError(t, err)
	assert.Equal(t, "warm-up", created.Roster.GeneralNote)
	require.Len(t, created.Items, 2)
	names := []string{created.Items[0].NameSnapshot, created.Items[1].NameSnapshot}
	assert.ElementsMatch(t, []string{"Bruno", "Alice"}, names)
	for _, item := range created.Items {
		assert.False(t, item.Present)
		if item.NameSnapshot == "Alice" {
			assert.Equal(t, "999", item.DocumentSnapshot)
			assert.Equal(t, "cli-b", item.ClientID)
		}
	}

	_, err = h.svc.CreateRoster(ctx, dto.CreateRosterRequest{OfferingID: "off-1", Date: &monday})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyExists)

	tuesday := monday.AddDays(1)
	_, err = h.svc.CreateRoster(ctx, dto.CreateRosterRequest{OfferingID: "off-1", Date: &tuesday})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	february := models.NewDate(2024, time.February, 5)
	_, err = h.svc.CreateRoster(ctx, dto.CreateRosterRequest{OfferingID: "off-1", Date: &february})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAttendanceRosterServiceConcurrentCreateRoster(t *testing.T) {
	h := newRosterHarness(0)
	ctx := context.Background()
	for _, client := range []string{"cli-a", "cli-b"} {
		_, err := h.enrollmentHarness.svc.Enroll(ctx, enrollReq(client))
		require.NoError(t, err)
	}

	const workers = 8
	date := models.NewDate(2024, time.January, 8)
	results := make([]*models.RosterWithItems, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.CreateRoster(ctx, dto.CreateRosterRequest{OfferingID: "off-1", Date: &date})
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < workers; i++ {
		if errs[i] == nil {
			created++
			assert.Len(t, results[i].Items, 2)
			continue
		}
		assert.ErrorIs(t, errs[i], appErrors.ErrAlreadyExists)
	}
	assert.Equal(t, 1, created)
	require.Len(t, h.rosters.rosters, 1)
	for id := range h.rosters.rosters {
		assert.Len(t, h.rosters.items[id], 2)
	}
	assert.Len(t, h.hooks.rosters, 1)
}

func TestAttendanceRosterServiceConcurrentGenerateRange(t *testing.T) {
	h := newRosterHarness(0)
	ctx := context.Background()
	_, err := h.enrollmentHarness.svc.Enroll(ctx, enrollReq("cli-a"))
	require.NoError(t, err)

	const workers = 6
	jan1, jan31 := models.NewDate(2024, time.January, 1), models.NewDate(2024, time.January, 31)
	results := make([]*models.RosterRangeResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.GenerateRange(ctx, "off-1", rangeReq(jan1, jan31))
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Empty(t, results[i].Errors)
		assert.Equal(t, 5, results[i].Created+results[i].Existing)
		assert.Equal(t, 26, results[i].Skipped)
		created += results[i].Created
	}
	assert.Equal(t, 5, created)
	assert.Len(t, h.rosters.rosters, 5)
	for id := range h.rosters.rosters {
		assert.Len(t, h.rosters.items[id], 1)
	}
}

func TestAttendanceRosterServiceHistoryIsAdditive(t *testing.T) {
	h := newRosterHarness(0)
	ctx := context.Background()
	ana, err := h.enrollmentHarness.svc.Enroll(ctx, enrollReq("cli-a"))
	require.NoError(t, err)

	monday := models.NewDate(2024, time.January, 15)
	created, err := h.svc.CreateRoster(ctx, dto.CreateRosterRequest{OfferingID: "off-1", Date: &monday})
	require.NoError(t, err)
	require.Len(t, created.Items, 1)

	_, err = h.enrollmentHarness.svc.End(ctx, ana.ID, dto.EndEnrollmentRequest{})
	require.NoError(t, err)
	_, err = h.enrollmentHarness.svc.Enroll(ctx, enrollReq("cli-c"))
	require.NoError(t, err)

	synced, err := h.svc.Synchronize(ctx, created.Roster.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, synced.Added)
	assert.Equal(t, 0, synced.AlreadyPresent)

	opened, err := h.svc.OpenRoster(ctx, created.Roster.ID)
	require.NoError(t, err)
	require.Len(t, opened.Items, 2)
	assert.Equal(t, "Ana", opened.Items[0].NameSnapshot)
	assert.Equal(t, "Carla", opened.Items[1].NameSnapshot)

	again, err := h.svc.Synchronize(ctx, created.Roster.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Added)
	assert.Equal(t, 1, again.AlreadyPresent)

	_, err = h.svc.Synchronize(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAttendanceRosterServiceListRostersUsesCache(t *testing.T) {
	h := newRosterHarness(0)
	ctx := context.Background()
	monday := models.NewDate(2024, time.January, 22)

	empty, err := h.svc.ListRosters(ctx, "off-1", dto.RosterListFilter{})
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.True(t, h.cache.has(rosterSummaryKey("off-1", "-", "-")))

	_, err = h.svc.CreateRoster(ctx, dto.CreateRosterRequest{OfferingID: "off-1", Date: &monday})
	require.NoError(t, err)
	assert.False(t, h.cache.has(rosterSummaryKey("off-1", "-", "-")))

	listed, err := h.svc.ListRosters(ctx, "off-1", dto.RosterListFilter{From: &monday, To: &monday})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	jan1 := models.NewDate(2024, time.January, 1)
	_, err = h.svc.ListRosters(ctx, "off-1", dto.RosterListFilter{From: &monday, To: &jan1})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
