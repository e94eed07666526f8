package availability

import (
	"testing"
	"time"

	"livechat-app/internal/models"
)

func weekdayPolicy(start, end string) models.WorkingHoursPolicy {
	return models.WorkingHoursPolicy{
		Enabled:  true,
		Timezone: "UTC",
		Days: map[string]models.DaySchedule{
			"monday":    {Enabled: true, Start: start, End: end},
			"tuesday":   {Enabled: true, Start: start, End: end},
			"wednesday": {Enabled: true, Start: start, End: end},
			"thursday":  {Enabled: true, Start: start, End: end},
			"friday":    {Enabled: true, Start: start, End: end},
		},
	}
}

// 2 June 2025 is a Monday.
func mondayAt(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

func TestDisabledPolicyAlwaysAvailable(t *testing.T) {
	policy := models.WorkingHoursPolicy{Enabled: false}

	times := []time.Time{
		mondayAt(3, 0),
		mondayAt(12, 0),
		time.Date(2025, 6, 8, 23, 59, 0, 0, time.UTC), // Sunday night
	}
	for _, now := range times {
		if !IsAvailable(policy, now) {
			t.Errorf("disabled policy unavailable at %v", now)
		}
	}
}

func TestScheduleBoundariesInclusive(t *testing.T) {
	policy := weekdayPolicy("09:00", "17:00")

	cases := []struct {
		hour, min int
		want      bool
	}{
		{8, 59, false},
		{9, 0, true},
		{12, 30, true},
		{17, 0, true},
		{17, 1, false},
	}
	for _, c := range cases {
		got := IsAvailable(policy, mondayAt(c.hour, c.min))
		if got != c.want {
			t.Errorf("IsAvailable at %02d:%02d = %v, want %v", c.hour, c.min, got, c.want)
		}
	}
}

func TestUnscheduledDayUnavailable(t *testing.T) {
	policy := weekdayPolicy("09:00", "17:00")

	saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)
	if IsAvailable(policy, saturday) {
		t.Error("available on a day with no schedule")
	}

	policy.Days["monday"] = models.DaySchedule{Enabled: false, Start: "09:00", End: "17:00"}
	if IsAvailable(policy, mondayAt(12, 0)) {
		t.Error("available on a disabled day")
	}
}

func TestTimezoneConversion(t *testing.T) {
	policy := weekdayPolicy("09:00", "17:00")
	policy.Timezone = "America/New_York"

	// 13:00 UTC on Monday is 09:00 in New York (EDT).
	if !IsAvailable(policy, mondayAt(13, 0)) {
		t.Error("unavailable at 09:00 local time")
	}
	// 12:59 UTC is 08:59 local.
	if IsAvailable(policy, mondayAt(12, 59)) {
		t.Error("available before local opening time")
	}
}

func TestMidnightSpanningRangeNeverMatches(t *testing.T) {
	policy := weekdayPolicy("22:00", "02:00")

	for _, now := range []time.Time{mondayAt(23, 0), mondayAt(1, 0), mondayAt(12, 0)} {
		if IsAvailable(policy, now) {
			t.Errorf("start > end range matched at %v", now)
		}
	}
}

func TestUnknownTimezoneFailsClosed(t *testing.T) {
	policy := weekdayPolicy("00:00", "23:59")
	policy.Timezone = "Mars/Olympus_Mons"

	if IsAvailable(policy, mondayAt(12, 0)) {
		t.Error("available despite unknown timezone")
	}
	if _, err := Check(policy, mondayAt(12, 0)); err == nil {
		t.Error("Check returned no error for unknown timezone")
	}
}
