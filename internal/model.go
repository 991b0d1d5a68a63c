package internal

import "time"

// DateLayout is the calendar-date format used for streak bookkeeping.
const DateLayout = "2006-01-02"

type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

type User struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

// Profile holds the cumulative focus statistics of one user.
type Profile struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	TotalFocusMinutes int       `json:"total_focus_minutes"`
	TotalSessions     int       `json:"total_sessions"`
	Experience        int       `json:"experience"`
	Level             int       `json:"level"`
	Coins             int       `json:"coins"`
	StreakCount       int       `json:"streak_count"`
	BestStreak        int       `json:"best_streak"`
	LastCompletedDate string    `json:"last_completed_date,omitempty"` // YYYY-MM-DD, empty when never completed
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Session struct {
	ID                    string        `json:"id"`
	ProfileID             string        `json:"profile_id"`
	FocusMinutes          int           `json:"focus_minutes"`
	ShortBreakMinutes     int           `json:"short_break_minutes"`
	LongBreakMinutes      int           `json:"long_break_minutes"`
	CyclesBeforeLongBreak int           `json:"cycles_before_long_break"`
	CurrentCycle          int           `json:"current_cycle"`
	Status                SessionStatus `json:"status"`
	StartedAt             time.Time     `json:"started_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
	CompletedFocusMinutes int           `json:"completed_focus_minutes"`
	RewardTier            string        `json:"reward_tier,omitempty"`
}

func (s *Session) Running() bool { return s.Status == StatusRunning }

// ElapsedSeconds reports wall-clock seconds since start plus banked minutes
// for a running session. Terminal sessions only report the banked minutes.
func (s *Session) ElapsedSeconds(now time.Time) int {
	banked := s.CompletedFocusMinutes * 60
	if !s.Running() {
		return banked
	}
	elapsed := int(now.Sub(s.StartedAt).Seconds()) + banked
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ForestEntry is the immutable reward record planted for a completed session.
type ForestEntry struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id"`
	RewardTier   string    `json:"reward_tier"`
	FocusMinutes int       `json:"focus_minutes"`
	PlantedAt    time.Time `json:"planted_at"`
}
