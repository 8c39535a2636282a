package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
)

func TestProgressUpdateStampsAndClearsCompletionTime(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "Sam Student", models.RoleStudent)
	course := f.course(t, "CRS-1234", 2, 1)
	ctx := context.Background()

	fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	f.progress.(*progressService).now = func() time.Time { return fixed }

	initial, err := f.progress.Initialize(ctx, student.ID, course)
	require.NoError(t, err)
	require.Equal(t, 3, initial.TotalSections)
	require.Zero(t, initial.ProgressPercentage)

	updated, err := f.progress.Update(ctx, student.ID, course.ID, dto.NewProgressUpdate(1, 0, true))
	require.NoError(t, err)
	require.True(t, updated.Modules[1].Sections[0].IsCompleted)
	require.True(t, updated.Modules[1].Sections[0].ContentAvailable)
	require.True(t, fixed.Equal(*updated.Modules[1].Sections[0].CompletionTime))
	require.Equal(t, 33, updated.ProgressPercentage)

	cleared, err := f.progress.Update(ctx, student.ID, course.ID, dto.NewProgressUpdate(1, 0, false))
	require.NoError(t, err)
	require.False(t, cleared.Modules[1].Sections[0].IsCompleted)
	require.Nil(t, cleared.Modules[1].Sections[0].CompletionTime)
	require.Zero(t, cleared.ProgressPercentage)
}

func TestProgressUpdateErrors(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "Sam Student", models.RoleStudent)
	course := f.course(t, "CRS-2345", 1)
	ctx := context.Background()

	_, err := f.progress.Update(ctx, student.ID, course.ID, dto.NewProgressUpdate(0, 0, true))
	require.ErrorIs(t, err, ErrProgressNotFound)

	_, err = f.progress.Initialize(ctx, student.ID, course)
	require.NoError(t, err)

	_, err = f.progress.Update(ctx, student.ID, course.ID, dto.NewProgressUpdate(2, 0, true))
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = f.progress.Update(ctx, student.ID, course.ID, dto.ProgressUpdateRequest{ModuleIndex: new(int)})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	_, err = f.progress.Get(ctx, student.ID+100, course.ID)
	require.ErrorIs(t, err, ErrProgressNotFound)
}

func TestProgressInitializeKeepsExistingRecord(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "Sam Student", models.RoleStudent)
	course := f.course(t, "CRS-3456", 2)
	ctx := context.Background()

	_, err := f.progress.Initialize(ctx, student.ID, course)
	require.NoError(t, err)
	_, err = f.progress.Update(ctx, student.ID, course.ID, dto.NewProgressUpdate(0, 1, true))
	require.NoError(t, err)

	again, err := f.progress.Initialize(ctx, student.ID, course)
	require.NoError(t, err)
	require.True(t, again.Modules[0].Sections[1].IsCompleted)
}

func TestProgressReconcileCarriesCompletionAcrossReorder(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "Sam Student", models.RoleStudent)
	course := f.course(t, "CRS-4567", 2)
	ctx := context.Background()

	_, err := f.progress.Initialize(ctx, student.ID, course)
	require.NoError(t, err)
	_, err = f.progress.Update(ctx, student.ID, course.ID, dto.NewProgressUpdate(0, 1, true))
	require.NoError(t, err)

	var events []ProgressEvent
	f.events.Listen(func(_ context.Context, event ProgressEvent) { events = append(events, event) })

	sections := course.Modules[0].Sections
	course.Modules[0].Sections = []models.Section{sections[1], sections[0], {SectionName: "Bonus"}}

	reshaped, err := f.progress.Reconcile(ctx, course)
	require.NoError(t, err)
	require.Equal(t, 1, reshaped)
	require.Len(t, events, 1)
	require.Zero(t, events[0].StudentID)

	record, err := f.progress.Get(ctx, student.ID, course.ID)
	require.NoError(t, err)
	require.Len(t, record.Modules[0].Sections, 3)
	require.Equal(t, "Section 1.2", record.Modules[0].Sections[0].SectionName)
	require.True(t, record.Modules[0].Sections[0].IsCompleted)
	require.False(t, record.Modules[0].Sections[1].IsCompleted)
	require.False(t, record.Modules[0].Sections[2].IsCompleted)

	reshaped, err = f.progress.Reconcile(ctx, course)
	require.NoError(t, err)
	require.Zero(t, reshaped)
	require.Len(t, events, 2, "a save without reshaping is still announced")
}

func TestProgressReconcileKeepsCompletionAcrossRenames(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "Sam Student", models.RoleStudent)
	course := f.course(t, "CRS-4568", 2, 1)
	ctx := context.Background()

	_, err := f.progress.Initialize(ctx, student.ID, course)
	require.NoError(t, err)
	_, err = f.progress.Update(ctx, student.ID, course.ID, dto.NewProgressUpdate(0, 0, true))
	require.NoError(t, err)
	_, err = f.progress.Update(ctx, student.ID, course.ID, dto.NewProgressUpdate(1, 0, true))
	require.NoError(t, err)

	course.Modules[0].Sections[0].SectionName = "Section 1.1 (revised)"
	reshaped, err := f.progress.Reconcile(ctx, course)
	require.NoError(t, err)
	require.Equal(t, 1, reshaped)

	record, err := f.progress.Get(ctx, student.ID, course.ID)
	require.NoError(t, err)
	require.Equal(t, "Section 1.1 (revised)", record.Modules[0].Sections[0].SectionName)
	require.True(t, record.Modules[0].Sections[0].IsCompleted)
	require.NotNil(t, record.Modules[0].Sections[0].CompletionTime)

	course.CourseName = "Renamed course"
	course.Modules[1].Title = "Renamed module"
	reshaped, err = f.progress.Reconcile(ctx, course)
	require.NoError(t, err)
	require.Equal(t, 1, reshaped)

	record, err = f.progress.Get(ctx, student.ID, course.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed course", record.CourseName)
	require.Equal(t, "Renamed module", record.Modules[1].Title)
	require.True(t, record.Modules[1].Sections[0].IsCompleted)
	require.True(t, record.Modules[0].Sections[0].IsCompleted)
	require.False(t, record.Modules[0].Sections[1].IsCompleted)
	require.Equal(t, 67, record.ProgressPercentage)
}
