package mood

import "time"

// DayFormat is the ISO calendar-day layout used for all streak and daily
// summary keys.
const DayFormat = "2006-01-02"

// Day formats an instant as a UTC calendar day.
func Day(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// StreakState is a user's consecutive-day contribution streak.
type StreakState struct {
	Current  int
	LastDate string
}

// AdvanceStreak applies one contribution on today to the streak state
// machine. found reports whether the user has an existing streak profile.
//
// Transitions:
//   - no profile: streak starts at 1
//   - last date is today: no-op, repeat same-day calls are idempotent
//   - last date is yesterday: streak advances by 1
//   - anything else (gap of two or more days, an unparsable date, or a
//     future date from clock skew): streak resets to 1
//
// today must come from a single consistent clock reading per submission so
// two contributions near midnight cannot double-increment.
func AdvanceStreak(state StreakState, found bool, today string) StreakState {
	if !found {
		return StreakState{Current: 1, LastDate: today}
	}
	if state.LastDate == today {
		return state
	}
	if prev := previousDay(today); prev != "" && state.LastDate == prev {
		return StreakState{Current: state.Current + 1, LastDate: today}
	}
	return StreakState{Current: 1, LastDate: today}
}

// previousDay returns the calendar day before day, or "" when day is not a
// valid ISO day (which can never equal a stored date).
func previousDay(day string) string {
	t, err := time.Parse(DayFormat, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DayFormat)
}
