// Package timeutil holds timezone helpers for the program's home region.
// All persisted timestamps are UTC; interns and administrators live in
// Almaty (UTC+5, no DST since 2005), so anything user-facing - reminder
// hours, quiet-hours checks, formatted dates - is computed there.
package timeutil

import (
	"fmt"
	"time"
)

// AlmatyTZ is the fixed Almaty offset. A FixedZone avoids depending on the
// host tzdata being present in minimal containers.
var AlmatyTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// Now returns the current wall time localized to Almaty.
func Now() time.Time {
	return time.Now().In(AlmatyTZ)
}

// ToAlmaty localizes a timestamp to Almaty.
func ToAlmaty(t time.Time) time.Time {
	return t.In(AlmatyTZ)
}

// StartOfDay truncates a timestamp to local midnight.
func StartOfDay(t time.Time) time.Time {
	local := ToAlmaty(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, AlmatyTZ)
}

// DaysBetween returns the absolute number of calendar days separating two
// timestamps, counted on local day boundaries.
func DaysBetween(a, b time.Time) int {
	days := int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// Quiet hours: no notifications before quietEnd or after quietStart local time.
const (
	quietEnd   = 9  // 09:00
	quietStart = 22 // 22:00
)

// IsSafeNotificationTime reports whether a notification may be delivered
// right now without waking anyone up.
func IsSafeNotificationTime(t time.Time) bool {
	hour := ToAlmaty(t).Hour()
	return hour >= quietEnd && hour < quietStart
}

// NextSafeNotificationTime returns the earliest moment at or after t when
// notifications are allowed.
func NextSafeNotificationTime(t time.Time) time.Time {
	local := ToAlmaty(t)
	switch hour := local.Hour(); {
	case hour < quietEnd:
		return time.Date(local.Year(), local.Month(), local.Day(), quietEnd, 0, 0, 0, AlmatyTZ)
	case hour >= quietStart:
		next := local.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), quietEnd, 0, 0, 0, AlmatyTZ)
	default:
		return local
	}
}

// Layouts used in notification texts and admin-facing output.
const (
	LayoutDate     = "02.01.2006"
	LayoutDateTime = "02.01.2006 15:04"
)

// FormatLocal renders a timestamp in Almaty time with the given layout.
func FormatLocal(t time.Time, layout string) string {
	return ToAlmaty(t).Format(layout)
}

// FormatRelative renders a timestamp as a rough Russian relative phrase,
// e.g. "2 ч назад" or "через 3 дн". Used in notification texts.
func FormatRelative(t time.Time) string {
	d := time.Until(t)
	if d >= 0 {
		return "через " + coarseDuration(d)
	}
	return coarseDuration(-d) + " назад"
}

func coarseDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "меньше минуты"
	case d < time.Hour:
		return fmt.Sprintf("%d мин", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d ч", int(d.Hours()))
	default:
		return fmt.Sprintf("%d дн", int(d.Hours()/24))
	}
}
