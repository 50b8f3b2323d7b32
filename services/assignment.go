package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/models"
)

const assignmentsPath = "/api/assignments"

// AssignmentService contains the assignment and submission calls of the API. Creating
// and submitting assignments need file uploads and are not part of it.
type AssignmentService interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	UserCalendar(ctx context.Context) ([]models.Assignment, error)
	Update(ctx context.Context, id string, update models.AssignmentUpdate) (*models.Assignment, error)
	Delete(ctx context.Context, id string) error
	Submissions(ctx context.Context, filter models.AssignmentFilter) ([]models.Submission, error)
	UserSubmissions(ctx context.Context, filter models.AssignmentFilter) ([]models.Submission, error)
}

type assignmentService struct {
	client *api.Client
}

// NewAssignmentService initializes a new instance of the assignment service with the provided api client
func NewAssignmentService(client *api.Client) AssignmentService {
	return &assignmentService{
		client: client,
	}
}

func assignmentPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", api.Validationf("assignment id is required")
	}
	if strings.ContainsAny(id, "/?#") {
		return "", api.Validationf("invalid assignment id %q", id)
	}
	return assignmentsPath + "/" + id, nil
}

func filterQuery(filter models.AssignmentFilter) url.Values {
	query := url.Values{}
	if filter.Course != "" {
		query.Set("course", filter.Course)
	}
	if filter.Batch != "" {
		query.Set("batch", filter.Batch)
	}
	if filter.Subject != "" {
		query.Set("subject", filter.Subject)
	}
	if filter.Minimal {
		query.Set("minimal", "true")
	}
	return query
}

func (a *assignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := a.client.Do(ctx, api.Request{Method: http.MethodGet, Path: assignmentsPath, Query: filterQuery(filter)}, &assignments)
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (a *assignmentService) UserCalendar(ctx context.Context) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := a.client.Do(ctx, api.Request{Method: http.MethodGet, Path: assignmentsPath + "/user-calendar"}, &assignments)
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// Update requires a title, course and subject, as the edit form does
func (a *assignmentService) Update(ctx context.Context, id string, update models.AssignmentUpdate) (*models.Assignment, error) {
	path, err := assignmentPath(id)
	if err != nil {
		return nil, err
	}
	update.Title = strings.TrimSpace(update.Title)
	if update.Title == "" || strings.TrimSpace(update.Course) == "" || strings.TrimSpace(update.Subject) == "" {
		return nil, api.Validationf("title, course and subject are required")
	}
	assignment := &models.Assignment{}
	if err := a.client.Do(ctx, api.Request{Method: http.MethodPut, Path: path, Body: update}, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// Delete removes an assignment. Non-admins get api.ErrForbidden.
func (a *assignmentService) Delete(ctx context.Context, id string) error {
	path, err := assignmentPath(id)
	if err != nil {
		return err
	}
	return a.client.Do(ctx, api.Request{Method: http.MethodDelete, Path: path}, nil)
}

// Submissions lists the hand-ins of every student, for lecturers
func (a *assignmentService) Submissions(ctx context.Context, filter models.AssignmentFilter) ([]models.Submission, error) {
	return a.submissions(ctx, assignmentsPath+"/submissions", filter)
}

// UserSubmissions lists the current user's own hand-ins
func (a *assignmentService) UserSubmissions(ctx context.Context, filter models.AssignmentFilter) ([]models.Submission, error) {
	return a.submissions(ctx, "/api/submissions", filter)
}

func (a *assignmentService) submissions(ctx context.Context, path string, filter models.AssignmentFilter) ([]models.Submission, error) {
	var list models.SubmissionList
	if err := a.client.Do(ctx, api.Request{Method: http.MethodGet, Path: path, Query: filterQuery(filter)}, &list); err != nil {
		return nil, err
	}
	return list, nil
}
