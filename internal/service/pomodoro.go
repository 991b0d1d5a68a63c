package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/clock"
	"github.com/Luis200410/Improve/internal/storage"
)

const (
	DefaultFocusMinutes          = 25
	DefaultShortBreakMinutes     = 5
	DefaultLongBreakMinutes      = 15
	DefaultCyclesBeforeLongBreak = 4
	DefaultForestLimit           = 12

	plantedLabelLayout = "Jan 02"
)

// SessionSnapshot is the public view of a session.
type SessionSnapshot struct {
	ID                    string                 `json:"id"`
	FocusMinutes          int                    `json:"focus_minutes"`
	ShortBreakMinutes     int                    `json:"short_break_minutes"`
	LongBreakMinutes      int                    `json:"long_break_minutes"`
	CyclesBeforeLongBreak int                    `json:"cycles_before_long_break"`
	CurrentCycle          int                    `json:"current_cycle"`
	Status                internal.SessionStatus `json:"status"`
	StartedAt             string                 `json:"started_at"`
	ElapsedSeconds        int                    `json:"elapsed_seconds"`
}

type ForestItem struct {
	Tier    string `json:"tier"`
	Minutes int    `json:"minutes"`
	Planted string `json:"planted"`
}

type Summary struct {
	Profile       ProfileStats     `json:"profile"`
	Forest        []ForestItem     `json:"forest"`
	ActiveSession *SessionSnapshot `json:"active_session"`
}

type CompletionResult struct {
	Summary
	XPGained   int    `json:"xp_gained"`
	RewardTier string `json:"reward_tier"`
}

type PomodoroOptions struct {
	Clock       clock.Clock
	Location    *time.Location
	ForestLimit int
	Logger      internal.Logger
}

// PomodoroService drives the focus session lifecycle for one user at a time.
type PomodoroService struct {
	repo        storage.PomodoroRepository
	clock       clock.Clock
	loc         *time.Location
	forestLimit int
	logger      internal.Logger
	tracer      trace.Tracer
}

func NewPomodoroService(repo storage.PomodoroRepository, opts PomodoroOptions) *PomodoroService {
	s := &PomodoroService{
		repo:        repo,
		clock:       opts.Clock,
		loc:         opts.Location,
		forestLimit: opts.ForestLimit,
		logger:      opts.Logger,
		tracer:      otel.Tracer("github.com/Luis200410/Improve/internal/service"),
	}
	if s.clock == nil {
		s.clock = clock.SystemClock{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.forestLimit < 1 {
		s.forestLimit = DefaultForestLimit
	}
	if s.logger == nil {
		s.logger = internal.NopLogger()
	}
	return s
}

func (s *PomodoroService) startSpan(ctx context.Context, name string, user *internal.User) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", user.ID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Summary returns the user's progression, recent forest and active session.
func (s *PomodoroService) Summary(ctx context.Context, user *internal.User) (summary *Summary, err error) {
	ctx, span := s.startSpan(ctx, "pomodoro.summary", user)
	defer func() { endSpan(span, err) }()

	err = s.repo.WithProfile(ctx, user.ID, func(tx storage.PomodoroTx) error {
		summary, err = s.summarize(ctx, tx, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Start opens a new running session, cancelling any session still running
// for the same profile.
func (s *PomodoroService) Start(ctx context.Context, user *internal.User, req *StartRequest) (snapshot *SessionSnapshot, err error) {
	ctx, span := s.startSpan(ctx, "pomodoro.start", user)
	defer func() { endSpan(span, err) }()

	now := s.clock.Now()
	sess := &internal.Session{
		ID:                    uuid.NewString(),
		FocusMinutes:          minutesOrDefault(req.FocusMinutes, DefaultFocusMinutes),
		ShortBreakMinutes:     minutesOrDefault(req.ShortBreakMinutes, DefaultShortBreakMinutes),
		LongBreakMinutes:      minutesOrDefault(req.LongBreakMinutes, DefaultLongBreakMinutes),
		CyclesBeforeLongBreak: minutesOrDefault(req.CyclesBeforeLongBreak, DefaultCyclesBeforeLongBreak),
		CurrentCycle:          1,
		Status:                internal.StatusRunning,
		StartedAt:             now,
		UpdatedAt:             now,
	}

	err = s.repo.WithProfile(ctx, user.ID, func(tx storage.PomodoroTx) error {
		running, err := tx.RunningSessions(ctx)
		if err != nil {
			return err
		}
		for _, prev := range running {
			prev.Status = internal.StatusCancelled
			prev.UpdatedAt = now
			if err := tx.SaveSession(ctx, prev); err != nil {
				return err
			}
			s.logger.Infof("pomodoro: user=%s superseded session %s", user.ID, prev.ID)
		}
		sess.ProfileID = tx.Profile().ID
		return tx.SaveSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("session.id", sess.ID), attribute.Int("session.focus_minutes", sess.FocusMinutes))
	s.logger.Infof("pomodoro: user=%s started session %s (%d min)", user.ID, sess.ID, sess.FocusMinutes)
	return s.snapshot(sess, now), nil
}

// Complete credits a running session to the profile ledger and plants its
// tree. Completing a session that is not running changes nothing.
func (s *PomodoroService) Complete(ctx context.Context, user *internal.User, req *CompleteRequest) (result *CompletionResult, err error) {
	ctx, span := s.startSpan(ctx, "pomodoro.complete", user)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("session.id", req.SessionID))

	err = s.repo.WithProfile(ctx, user.ID, func(tx storage.PomodoroTx) error {
		sess, err := s.lookup(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if !sess.Running() {
			return internal.NewInvalidStateError("session is not running")
		}

		minutes := sess.FocusMinutes
		if req.CompletedMinutes != nil {
			minutes = *req.CompletedMinutes
		}
		minutes = atLeastOne(minutes)

		now := s.clock.Now()
		profile := tx.Profile()
		gained, tier := ApplyFocusCompletion(profile, minutes, now.In(s.loc))
		profile.UpdatedAt = now
		if err := tx.SaveProfile(ctx, profile); err != nil {
			return err
		}

		sess.Status = internal.StatusCompleted
		sess.CompletedFocusMinutes = minutes
		sess.RewardTier = tier
		sess.UpdatedAt = now
		if err := tx.SaveSession(ctx, sess); err != nil {
			return err
		}

		if err := tx.PlantTree(ctx, &internal.ForestEntry{
			ID:           uuid.NewString(),
			RewardTier:   tier,
			FocusMinutes: minutes,
			PlantedAt:    now,
		}); err != nil {
			return err
		}

		summary, err := s.summarize(ctx, tx, now)
		if err != nil {
			return err
		}
		result = &CompletionResult{Summary: *summary, XPGained: gained, RewardTier: tier}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("pomodoro: user=%s completed session %s: +%d xp, %s", user.ID, req.SessionID, result.XPGained, result.RewardTier)
	return result, nil
}

// Cancel stops a running session without touching the ledger. Cancelling an
// already cancelled session is a no-op; a completed session cannot be cancelled.
func (s *PomodoroService) Cancel(ctx context.Context, user *internal.User, req *CancelRequest) (err error) {
	ctx, span := s.startSpan(ctx, "pomodoro.cancel", user)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("session.id", req.SessionID))

	return s.repo.WithProfile(ctx, user.ID, func(tx storage.PomodoroTx) error {
		sess, err := s.lookup(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		switch sess.Status {
		case internal.StatusCancelled:
			return nil
		case internal.StatusCompleted:
			return internal.NewInvalidStateError("session is already completed")
		}
		sess.Status = internal.StatusCancelled
		sess.UpdatedAt = s.clock.Now()
		if err := tx.SaveSession(ctx, sess); err != nil {
			return err
		}
		s.logger.Infof("pomodoro: user=%s cancelled session %s", user.ID, sess.ID)
		return nil
	})
}

func (s *PomodoroService) lookup(ctx context.Context, tx storage.PomodoroTx, id string) (*internal.Session, error) {
	sess, err := tx.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, internal.NewNotFoundError("session %s not found", id)
	}
	return sess, err
}

func (s *PomodoroService) summarize(ctx context.Context, tx storage.PomodoroTx, now time.Time) (*Summary, error) {
	profile := tx.Profile()
	entries, err := tx.RecentForest(ctx, s.forestLimit)
	if err != nil {
		return nil, err
	}
	running, err := tx.RunningSessions(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Profile: Stats(profile),
		Forest:  make([]ForestItem, 0, len(entries)),
	}
	for _, e := range entries {
		summary.Forest = append(summary.Forest, ForestItem{
			Tier:    e.RewardTier,
			Minutes: e.FocusMinutes,
			Planted: e.PlantedAt.In(s.loc).Format(plantedLabelLayout),
		})
	}
	if len(running) > 0 {
		summary.ActiveSession = s.snapshot(running[0], now)
	}
	return summary, nil
}

func (s *PomodoroService) snapshot(sess *internal.Session, now time.Time) *SessionSnapshot {
	return &SessionSnapshot{
		ID:                    sess.ID,
		FocusMinutes:          sess.FocusMinutes,
		ShortBreakMinutes:     sess.ShortBreakMinutes,
		LongBreakMinutes:      sess.LongBreakMinutes,
		CyclesBeforeLongBreak: sess.CyclesBeforeLongBreak,
		CurrentCycle:          sess.CurrentCycle,
		Status:                sess.Status,
		StartedAt:             sess.StartedAt.In(s.loc).Format(time.RFC3339),
		ElapsedSeconds:        sess.ElapsedSeconds(now),
	}
}

func minutesOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return atLeastOne(*v)
}
