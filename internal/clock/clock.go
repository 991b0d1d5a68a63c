package clock

import "time"

// Clock abstracts time so the ledger and session rules stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed instant forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
