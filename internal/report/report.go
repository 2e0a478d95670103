// Package report renders the per-user, per-day employee schedule as text.
package report

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/avolkov/shiftdesk/internal/models"
	"github.com/avolkov/shiftdesk/internal/store"
)

const (
	// WeekDays and MonthDays are the two report spans the bot menu offers.
	WeekDays  = 7
	MonthDays = 30
	// MaxReportDays caps the report span so one message cannot grow without bound.
	MaxReportDays = 31

	// NoDataMessage is returned when the store has no profiles at all.
	NoDataMessage = "No employee status data."

	// noStatusPlaceholder marks days without any status record.
	noStatusPlaceholder = "—"
)

// Generate renders the schedule grid for the inclusive range
// [today, today+days-1]: one block per profile, one DD.MM line per day with
// the resolved status label. Profiles come in the store's deterministic
// order; days above MaxReportDays are clamped.
func Generate(profiles []models.UserProfile, today models.Date, days int) string {
	if days < 1 {
		days = 1
	}
	if days > MaxReportDays {
		slog.Debug("Report span clamped", "requested", days, "max", MaxReportDays)
		days = MaxReportDays
	}
	if len(profiles) == 0 {
		return NoDataMessage
	}

	end := today.AddDays(days - 1)
	span := "week"
	if days > WeekDays {
		span = "month"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 Schedule for the %s (%s - %s):\n", span, today.Label(), end.Format())

	for _, profile := range profiles {
		fmt.Fprintf(&b, "\n👤 %s:\n", profile.DisplayName)
		for i := 0; i < days; i++ {
			day := today.AddDays(i)
			line := noStatusPlaceholder
			if label, ok := store.FindStatusForDate(profile, day); ok {
				line = string(label)
			}
			fmt.Fprintf(&b, "  %s: %s\n", day.Label(), line)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
