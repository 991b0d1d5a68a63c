package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/clock"
)

//go:embed postgres_schema.sql
var postgresSchema string

type PostgresStorage struct {
	pool   *pgxpool.Pool
	clock  clock.Clock
	logger internal.Logger
}

func NewPostgresStorage(ctx context.Context, dsn string, logger internal.Logger, opts ...Option) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Errorf("failed to ping postgres: %v", err)
		return nil, err
	}
	return &PostgresStorage{pool: pool, clock: buildOptions(opts).clock, logger: logger}, nil
}

// Migrate creates the schema. Every statement is idempotent.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		p.logger.Errorf("failed to apply schema: %v", err)
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// --- UserRepository ---
func (p *PostgresStorage) GetUserByToken(ctx context.Context, token string) (*internal.User, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, token, name FROM users WHERE token = $1`, token)
	var u internal.User
	if err := row.Scan(&u.ID, &u.Token, &u.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("failed to query user: %v", err)
		return nil, err
	}
	return &u, nil
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user *internal.User) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO users (id, token, name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET token = EXCLUDED.token, name = EXCLUDED.name`,
		user.ID, user.Token, user.Name)
	if err != nil {
		p.logger.Errorf("failed to insert user: %v", err)
		return err
	}
	return nil
}

// --- PomodoroRepository ---

// WithProfile runs fn inside one transaction holding the profile row lock.
func (p *PostgresStorage) WithProfile(ctx context.Context, userID string, fn func(tx PomodoroTx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		now := p.clock.Now()
		_, err := tx.Exec(ctx, `INSERT INTO pomodoro_profiles (id, user_id, level, created_at, updated_at)
			VALUES ($1, $2, 1, $3, $3) ON CONFLICT (user_id) DO NOTHING`, uuid.NewString(), userID, now)
		if err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}

		var prof internal.Profile
		var last *time.Time
		err = tx.QueryRow(ctx, `SELECT id, user_id, total_focus_minutes, total_sessions, experience, level,
				coins, streak_count, best_streak, last_completed_date, created_at, updated_at
			FROM pomodoro_profiles WHERE user_id = $1 FOR UPDATE`, userID).
			Scan(&prof.ID, &prof.UserID, &prof.TotalFocusMinutes, &prof.TotalSessions, &prof.Experience,
				&prof.Level, &prof.Coins, &prof.StreakCount, &prof.BestStreak, &last, &prof.CreatedAt, &prof.UpdatedAt)
		if err != nil {
			return fmt.Errorf("lock profile: %w", err)
		}
		if last != nil {
			prof.LastCompletedDate = last.Format(internal.DateLayout)
		}

		return fn(&pgTx{tx: tx, profile: &prof, logger: p.logger})
	})
}

type pgTx struct {
	tx      pgx.Tx
	profile *internal.Profile
	logger  internal.Logger
}

func (t *pgTx) Profile() *internal.Profile {
	cp := *t.profile
	return &cp
}

func (t *pgTx) SaveProfile(ctx context.Context, p *internal.Profile) error {
	var last *time.Time
	if p.LastCompletedDate != "" {
		d, err := time.Parse(internal.DateLayout, p.LastCompletedDate)
		if err != nil {
			return fmt.Errorf("profile last completed date: %w", err)
		}
		last = &d
	}
	_, err := t.tx.Exec(ctx, `UPDATE pomodoro_profiles SET total_focus_minutes = $2, total_sessions = $3,
			experience = $4, level = $5, coins = $6, streak_count = $7, best_streak = $8,
			last_completed_date = $9, updated_at = $10
		WHERE id = $1`,
		t.profile.ID, p.TotalFocusMinutes, p.TotalSessions, p.Experience, p.Level, p.Coins,
		p.StreakCount, p.BestStreak, last, p.UpdatedAt)
	if err != nil {
		t.logger.Errorf("failed to update profile: %v", err)
		return err
	}
	cp := *p
	t.profile = &cp
	return nil
}

const sessionColumns = `id, profile_id, focus_minutes, short_break_minutes, long_break_minutes,
	cycles_before_long_break, current_cycle, status, started_at, updated_at,
	completed_focus_minutes, reward_tier`

func scanSession(row pgx.Row) (*internal.Session, error) {
	var s internal.Session
	var status string
	err := row.Scan(&s.ID, &s.ProfileID, &s.FocusMinutes, &s.ShortBreakMinutes, &s.LongBreakMinutes,
		&s.CyclesBeforeLongBreak, &s.CurrentCycle, &status, &s.StartedAt, &s.UpdatedAt,
		&s.CompletedFocusMinutes, &s.RewardTier)
	if err != nil {
		return nil, err
	}
	s.Status = internal.SessionStatus(status)
	return &s, nil
}

func (t *pgTx) GetSession(ctx context.Context, id string) (*internal.Session, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM pomodoro_sessions
		WHERE id = $1 AND profile_id = $2`, id, t.profile.ID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		t.logger.Errorf("failed to query session: %v", err)
		return nil, err
	}
	return s, nil
}

func (t *pgTx) RunningSessions(ctx context.Context) ([]*internal.Session, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+sessionColumns+` FROM pomodoro_sessions
		WHERE profile_id = $1 AND status = $2 ORDER BY started_at DESC`, t.profile.ID, string(internal.StatusRunning))
	if err != nil {
		t.logger.Errorf("failed to query running sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	var sessions []*internal.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			t.logger.Errorf("failed to scan session: %v", err)
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (t *pgTx) SaveSession(ctx context.Context, s *internal.Session) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO pomodoro_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET current_cycle = EXCLUDED.current_cycle, status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at, completed_focus_minutes = EXCLUDED.completed_focus_minutes,
			reward_tier = EXCLUDED.reward_tier`,
		s.ID, t.profile.ID, s.FocusMinutes, s.ShortBreakMinutes, s.LongBreakMinutes,
		s.CyclesBeforeLongBreak, s.CurrentCycle, string(s.Status), s.StartedAt, s.UpdatedAt,
		s.CompletedFocusMinutes, s.RewardTier)
	if err != nil {
		t.logger.Errorf("failed to save session: %v", err)
		return err
	}
	return nil
}

func (t *pgTx) PlantTree(ctx context.Context, e *internal.ForestEntry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO pomodoro_forest (id, profile_id, reward_tier, focus_minutes, planted_at)
		VALUES ($1, $2, $3, $4, $5)`, e.ID, t.profile.ID, e.RewardTier, e.FocusMinutes, e.PlantedAt)
	if err != nil {
		t.logger.Errorf("failed to plant tree: %v", err)
		return err
	}
	return nil
}

func (t *pgTx) RecentForest(ctx context.Context, limit int) ([]internal.ForestEntry, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, profile_id, reward_tier, focus_minutes, planted_at
		FROM pomodoro_forest WHERE profile_id = $1 ORDER BY planted_at DESC, seq DESC LIMIT $2`, t.profile.ID, limit)
	if err != nil {
		t.logger.Errorf("failed to query forest: %v", err)
		return nil, err
	}
	defer rows.Close()

	entries := []internal.ForestEntry{}
	for rows.Next() {
		var e internal.ForestEntry
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.RewardTier, &e.FocusMinutes, &e.PlantedAt); err != nil {
			t.logger.Errorf("failed to scan forest entry: %v", err)
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Compile-time assertions ---
var _ Store = (*PostgresStorage)(nil)
