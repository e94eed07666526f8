package availability

import (
	"fmt"
	"strings"
	"time"

	"livechat-app/internal/models"
)

// IsAvailable reports whether live support is open at the given instant.
// Disabled policies are always available. Both schedule bounds are
// inclusive. A day whose start is later than its end (a range crossing
// midnight) never matches; split such ranges across two days instead.
func IsAvailable(policy models.WorkingHoursPolicy, now time.Time) bool {
	ok, err := Check(policy, now)
	if err != nil {
		return false
	}
	return ok
}

// Check is IsAvailable with the timezone error exposed. An unknown
// timezone fails closed.
func Check(policy models.WorkingHoursPolicy, now time.Time) (bool, error) {
	if !policy.Enabled {
		return true, nil
	}

	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		return false, fmt.Errorf("load timezone %q: %w", policy.Timezone, err)
	}

	local := now.In(loc)
	day := strings.ToLower(local.Weekday().String())

	schedule, ok := policy.Days[day]
	if !ok || !schedule.Enabled {
		return false, nil
	}

	// Zero-padded "HH:MM" compares lexicographically the same as numerically.
	clock := local.Format("15:04")
	return schedule.Start <= clock && clock <= schedule.End, nil
}
