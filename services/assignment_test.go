package services_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/models"
	"github.com/linesmerrill/campus-chat/services"
)

func TestAssignmentService_List(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodGet, "/api/assignments", http.StatusOK, []map[string]string{
		{"_id": "A1", "title": "Essay", "dueDate": "2025-05-01", "dueTime": "23:59"},
		{"_id": "A2", "title": "Lab report", "dueDate": "2025-05-03T12:00:00.000Z"},
	})
	svc := services.NewAssignmentService(f.client(t, "tok"))

	got, err := svc.List(context.Background(), models.AssignmentFilter{Course: "CS", Batch: "2025", Minimal: true})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.True(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC).Equal(got[0].DueDate.Time))
	assert.Equal(t, "23:59", got[0].DueTime)
	assert.True(t, time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC).Equal(got[1].DueDate.Time))
	require.Len(t, f.seen(), 1)
	assert.Equal(t, "batch=2025&course=CS&minimal=true", f.seen()[0].Query)
}

func TestAssignmentService_UserCalendar(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodGet, "/api/assignments/user-calendar", http.StatusOK, []map[string]string{
		{"_id": "A1", "title": "Essay", "dueDate": "2025-05-01"},
	})
	svc := services.NewAssignmentService(f.client(t, "tok"))

	got, err := svc.UserCalendar(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Essay", got[0].Title)
	assert.Equal(t, "/api/assignments/user-calendar", f.seen()[0].Path)
}

func TestAssignmentService_Update(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodPut, "/api/assignments/{id}", http.StatusOK, map[string]string{"_id": "A1", "title": "Essay v2", "dueDate": "2025-05-02"})
	svc := services.NewAssignmentService(f.client(t, "tok"))

	update := models.AssignmentUpdate{
		Title:    " Essay v2 ",
		Course:   "CS",
		Subject:  "Writing",
		DueDate:  models.DueDate{Time: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)},
		DueTime:  "17:00",
		Priority: "high",
	}
	got, err := svc.Update(context.Background(), "A1", update)
	require.NoError(t, err)

	assert.Equal(t, "Essay v2", got.Title)
	require.Len(t, f.seen(), 1)
	assert.Equal(t, "/api/assignments/A1", f.seen()[0].Path)
	assert.JSONEq(t, `{"title":"Essay v2","course":"CS","subject":"Writing","dueDate":"2025-05-02","dueTime":"17:00","priority":"high"}`, f.seen()[0].Body)
}

func TestAssignmentService_UpdateValidation(t *testing.T) {
	f := newFakeAPI()
	svc := services.NewAssignmentService(f.client(t, "tok"))

	_, err := svc.Update(context.Background(), "A1", models.AssignmentUpdate{Title: "Essay", Course: "CS"})
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = svc.Update(context.Background(), " ", models.AssignmentUpdate{Title: "Essay", Course: "CS", Subject: "Writing"})
	assert.ErrorIs(t, err, api.ErrValidation)

	assert.Empty(t, f.seen())
}

func TestAssignmentService_Delete(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodDelete, "/api/assignments/A1", http.StatusOK, models.ErrorMessageResponse{Message: "Assignment deleted"})
	f.handle(http.MethodDelete, "/api/assignments/A2", http.StatusForbidden, models.ErrorMessageResponse{Message: "Admins only"})
	f.handle(http.MethodDelete, "/api/assignments/A3", http.StatusNotFound, models.ErrorMessageResponse{Message: "Assignment not found"})
	f.handle(http.MethodDelete, "/api/assignments/A4", http.StatusUnauthorized, models.ErrorMessageResponse{Message: "Token expired"})
	svc := services.NewAssignmentService(f.client(t, "tok"))

	require.NoError(t, svc.Delete(context.Background(), "A1"))

	tests := []struct {
		id     string
		kind   error
		notice string
	}{
		{"A2", api.ErrForbidden, "Access denied. You do not have permission to do that."},
		{"A3", api.ErrNotFound, "Not found. It may have been removed."},
		{"A4", api.ErrAuthRequired, "Authentication failed. Please log in again."},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := svc.Delete(context.Background(), tt.id)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.notice, api.Notice(err))
		})
	}

	assert.ErrorIs(t, svc.Delete(context.Background(), "a/b"), api.ErrValidation)
	assert.Len(t, f.seen(), 4)
}

func TestAssignmentService_Submissions(t *testing.T) {
	f := newFakeAPI()
	f.handle(http.MethodGet, "/api/assignments/submissions", http.StatusOK, map[string]interface{}{
		"data": []map[string]string{{"_id": "S1", "title": "Essay", "studentName": "Bo"}},
	})
	f.handle(http.MethodGet, "/api/submissions", http.StatusOK, []map[string]string{
		{"_id": "S2", "title": "Lab report", "studentName": "Alice"},
	})
	svc := services.NewAssignmentService(f.client(t, "tok"))

	all, err := svc.Submissions(context.Background(), models.AssignmentFilter{Course: "CS", Batch: "2025"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Bo", all[0].StudentName)

	own, err := svc.UserSubmissions(context.Background(), models.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "S2", own[0].ID)

	require.Len(t, f.seen(), 2)
	assert.Equal(t, "batch=2025&course=CS", f.seen()[0].Query)
	assert.Equal(t, "/api/submissions", f.seen()[1].Path)
	assert.Empty(t, f.seen()[1].Query)
}
