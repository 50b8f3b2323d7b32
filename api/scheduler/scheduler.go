package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/campus-chat/models"
	"github.com/linesmerrill/campus-chat/services"
)

// DefaultSchedule checks the calendar every half hour
const DefaultSchedule = "@every 30m"

// Notify is called once per assignment that falls inside the reminder window
type Notify func(a models.Assignment, deadline time.Time)

// DeadlineReminder periodically checks the user's assignment calendar and reports the
// assignments that are due soon. Each assignment is reported at most once per process.
type DeadlineReminder struct {
	cron        *cron.Cron
	assignments services.AssignmentService
	schedule    string
	window      time.Duration
	notify      Notify
	now         func() time.Time

	mu       sync.Mutex
	notified map[string]struct{}
}

// Option configures a DeadlineReminder
type Option func(*DeadlineReminder)

// WithSchedule sets the cron spec the check runs on
func WithSchedule(spec string) Option {
	return func(r *DeadlineReminder) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *DeadlineReminder) {
		r.now = now
	}
}

// NewDeadlineReminder creates a reminder for assignments due within window
func NewDeadlineReminder(assignments services.AssignmentService, window time.Duration, notify Notify, opts ...Option) *DeadlineReminder {
	r := &DeadlineReminder{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		assignments: assignments,
		schedule:    DefaultSchedule,
		window:      window,
		notify:      notify,
		now:         time.Now,
		notified:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers the check and begins the scheduler
func (r *DeadlineReminder) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.run); err != nil {
		return fmt.Errorf("failed to register deadline reminder job %q: %w", r.schedule, err)
	}
	r.cron.Start()
	zap.S().Infow("deadline reminder started", "schedule", r.schedule, "window", r.window)
	return nil
}

// Stop waits for a running check to finish then stops the scheduler
func (r *DeadlineReminder) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	zap.S().Info("deadline reminder stopped")
}

func (r *DeadlineReminder) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	due, err := r.Check(ctx)
	if err != nil {
		zap.S().Errorw("failed to check assignment deadlines", "error", err)
		return
	}
	zap.S().Debugw("deadline check complete", "reminders", len(due))
}

// Check fetches the calendar and notifies about every assignment due within the window
// that was not reported before. It returns the newly reported assignments, soonest first.
func (r *DeadlineReminder) Check(ctx context.Context) ([]models.Assignment, error) {
	assignments, err := r.assignments.UserCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user calendar: %w", err)
	}

	now := r.now()
	horizon := now.Add(r.window)

	r.mu.Lock()
	var due []models.Assignment
	for _, a := range assignments {
		deadline := a.Deadline()
		if deadline.IsZero() || !deadline.After(now) || deadline.After(horizon) {
			continue
		}
		if _, ok := r.notified[a.ID]; ok {
			continue
		}
		r.notified[a.ID] = struct{}{}
		due = append(due, a)
	}
	r.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].Deadline().Before(due[j].Deadline())
	})
	if r.notify != nil {
		for _, a := range due {
			r.notify(a, a.Deadline())
		}
	}
	return due, nil
}
