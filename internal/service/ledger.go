package service

import (
	"time"

	"github.com/Luis200410/Improve/internal"
)

const (
	XPPerMinute     = 10
	XPPerLevel      = 500
	MinutesPerCoin  = 5
	defaultMinLevel = 1
)

// ProfileStats is the public view of a profile's progression.
type ProfileStats struct {
	Level             int `json:"level"`
	XP                int `json:"xp"`
	XPForNextLevel    int `json:"xp_for_next_level"`
	XPProgress        int `json:"xp_progress"`
	XPNeededForNext   int `json:"xp_needed_for_next"`
	TotalFocusMinutes int `json:"total_focus_minutes"`
	TotalSessions     int `json:"total_sessions"`
	StreakCount       int `json:"streak_count"`
	BestStreak        int `json:"best_streak"`
	Coins             int `json:"coins"`
}

// LevelFor derives the level from total experience.
func LevelFor(experience int) int {
	level := experience/XPPerLevel + 1
	if level < defaultMinLevel {
		return defaultMinLevel
	}
	return level
}

// ApplyFocusCompletion credits a finished focus block to the profile and
// returns the experience gained and the reward tier earned. today is the
// user's local calendar date.
func ApplyFocusCompletion(p *internal.Profile, minutes int, today time.Time) (int, string) {
	minutes = atLeastOne(minutes)

	p.TotalFocusMinutes += minutes
	p.TotalSessions++
	gained := minutes * XPPerMinute
	p.Experience += gained
	p.Coins += minutes / MinutesPerCoin

	todayStr := today.Format(internal.DateLayout)
	yesterdayStr := today.AddDate(0, 0, -1).Format(internal.DateLayout)
	switch p.LastCompletedDate {
	case todayStr:
	case yesterdayStr:
		p.StreakCount++
	default:
		// never completed, a gap, or a date ahead of today
		p.StreakCount = 1
	}
	if p.StreakCount > p.BestStreak {
		p.BestStreak = p.StreakCount
	}
	p.LastCompletedDate = todayStr

	p.Level = LevelFor(p.Experience)
	return gained, RewardTier(minutes)
}

func Stats(p *internal.Profile) ProfileStats {
	level := LevelFor(p.Experience)
	return ProfileStats{
		Level:             level,
		XP:                p.Experience,
		XPForNextLevel:    level * XPPerLevel,
		XPProgress:        p.Experience - (level-1)*XPPerLevel,
		XPNeededForNext:   XPPerLevel,
		TotalFocusMinutes: p.TotalFocusMinutes,
		TotalSessions:     p.TotalSessions,
		StreakCount:       p.StreakCount,
		BestStreak:        p.BestStreak,
		Coins:             p.Coins,
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
