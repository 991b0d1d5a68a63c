package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/clock"
	"github.com/Luis200410/Improve/internal/storage/migrations"
)

const migrationTable = "schema_migrations"

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// SQLiteStorage is the embedded single-file backend.
type SQLiteStorage struct {
	db     *sql.DB
	clock  clock.Clock
	logger internal.Logger
}

func NewSQLiteStorage(path string, logger internal.Logger, opts ...Option) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + cleanPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time; units of work serialize on the single connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStorage{db: db, clock: buildOptions(opts).clock, logger: logger}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Migrate applies each embedded migration file at most once.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+migrationTable+` WHERE name = ?`, name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}
		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, upMigration(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			name, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
		s.logger.Infof("storage: applied migration %s", name)
	}
	return nil
}

// upMigration returns the SQL in the "-- +migrate Up" section.
func upMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	content = content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(content, "-- +migrate Down"); downIdx != -1 {
		content = content[:downIdx]
	}
	return content
}

// --- UserRepository ---
func (s *SQLiteStorage) GetUserByToken(ctx context.Context, token string) (*internal.User, error) {
	var u internal.User
	err := s.db.QueryRowContext(ctx, `SELECT id, token, name FROM users WHERE token = ?`, token).
		Scan(&u.ID, &u.Token, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStorage) CreateUser(ctx context.Context, user *internal.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, token, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, name = excluded.name`,
		user.ID, user.Token, user.Name)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// --- PomodoroRepository ---
func (s *SQLiteStorage) WithProfile(ctx context.Context, userID string, fn func(tx PomodoroTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := toMillis(s.clock.Now())
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO pomodoro_profiles (id, user_id, level, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)`, uuid.NewString(), userID, now, now); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}

	var prof internal.Profile
	var createdAt, updatedAt int64
	err = tx.QueryRowContext(ctx, `SELECT id, user_id, total_focus_minutes, total_sessions, experience, level,
			coins, streak_count, best_streak, last_completed_date, created_at, updated_at
		FROM pomodoro_profiles WHERE user_id = ?`, userID).
		Scan(&prof.ID, &prof.UserID, &prof.TotalFocusMinutes, &prof.TotalSessions, &prof.Experience,
			&prof.Level, &prof.Coins, &prof.StreakCount, &prof.BestStreak, &prof.LastCompletedDate, &createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	prof.CreatedAt = fromMillis(createdAt)
	prof.UpdatedAt = fromMillis(updatedAt)

	if err := fn(&sqliteTx{tx: tx, profile: &prof}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx      *sql.Tx
	profile *internal.Profile
}

func (t *sqliteTx) Profile() *internal.Profile {
	cp := *t.profile
	return &cp
}

func (t *sqliteTx) SaveProfile(ctx context.Context, p *internal.Profile) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE pomodoro_profiles SET total_focus_minutes = ?, total_sessions = ?,
			experience = ?, level = ?, coins = ?, streak_count = ?, best_streak = ?,
			last_completed_date = ?, updated_at = ?
		WHERE id = ?`,
		p.TotalFocusMinutes, p.TotalSessions, p.Experience, p.Level, p.Coins,
		p.StreakCount, p.BestStreak, p.LastCompletedDate, toMillis(p.UpdatedAt), t.profile.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	cp := *p
	t.profile = &cp
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*internal.Session, error) {
	var sess internal.Session
	var status string
	var startedAt, updatedAt int64
	err := row.Scan(&sess.ID, &sess.ProfileID, &sess.FocusMinutes, &sess.ShortBreakMinutes, &sess.LongBreakMinutes,
		&sess.CyclesBeforeLongBreak, &sess.CurrentCycle, &status, &startedAt, &updatedAt,
		&sess.CompletedFocusMinutes, &sess.RewardTier)
	if err != nil {
		return nil, err
	}
	sess.Status = internal.SessionStatus(status)
	sess.StartedAt = fromMillis(startedAt)
	sess.UpdatedAt = fromMillis(updatedAt)
	return &sess, nil
}

func (t *sqliteTx) GetSession(ctx context.Context, id string) (*internal.Session, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM pomodoro_sessions
		WHERE id = ? AND profile_id = ?`, id, t.profile.ID)
	sess, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (t *sqliteTx) RunningSessions(ctx context.Context) ([]*internal.Session, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+sessionColumns+` FROM pomodoro_sessions
		WHERE profile_id = ? AND status = ? ORDER BY started_at DESC`, t.profile.ID, string(internal.StatusRunning))
	if err != nil {
		return nil, fmt.Errorf("list running sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*internal.Session
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (t *sqliteTx) SaveSession(ctx context.Context, sess *internal.Session) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO pomodoro_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET current_cycle = excluded.current_cycle, status = excluded.status,
			updated_at = excluded.updated_at, completed_focus_minutes = excluded.completed_focus_minutes,
			reward_tier = excluded.reward_tier`,
		sess.ID, t.profile.ID, sess.FocusMinutes, sess.ShortBreakMinutes, sess.LongBreakMinutes,
		sess.CyclesBeforeLongBreak, sess.CurrentCycle, string(sess.Status), toMillis(sess.StartedAt),
		toMillis(sess.UpdatedAt), sess.CompletedFocusMinutes, sess.RewardTier)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (t *sqliteTx) PlantTree(ctx context.Context, e *internal.ForestEntry) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO pomodoro_forest (id, profile_id, reward_tier, focus_minutes, planted_at)
		VALUES (?, ?, ?, ?, ?)`, e.ID, t.profile.ID, e.RewardTier, e.FocusMinutes, toMillis(e.PlantedAt))
	if err != nil {
		return fmt.Errorf("plant tree: %w", err)
	}
	return nil
}

func (t *sqliteTx) RecentForest(ctx context.Context, limit int) ([]internal.ForestEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, profile_id, reward_tier, focus_minutes, planted_at
		FROM pomodoro_forest WHERE profile_id = ? ORDER BY planted_at DESC, rowid DESC LIMIT ?`, t.profile.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list forest: %w", err)
	}
	defer rows.Close()

	entries := []internal.ForestEntry{}
	for rows.Next() {
		var e internal.ForestEntry
		var plantedAt int64
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.RewardTier, &e.FocusMinutes, &plantedAt); err != nil {
			return nil, fmt.Errorf("scan forest entry: %w", err)
		}
		e.PlantedAt = fromMillis(plantedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Compile-time assertions ---
var _ Store = (*SQLiteStorage)(nil)
