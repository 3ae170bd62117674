package utils

import (
	"os"
	"time"
)

// DateLocation is the application's timezone
var DateLocation = time.Local

// InitializeDateLocation sets up the application's timezone
func InitializeDateLocation() error {
	timezone := os.Getenv("DB_TIMEZONE")
	if timezone == "" {
		timezone = "Asia/Kolkata"
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	DateLocation = loc
	return nil
}

// NormalizeDate converts a time.Time to midnight in the application timezone
func NormalizeDate(t time.Time) time.Time {
	year, month, day := t.In(DateLocation).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, DateLocation)
}

// Today returns today's date normalized at midnight in the application timezone
func Today() time.Time {
	return NormalizeDate(time.Now())
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the date in the application timezone
func ParseDate(value string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", value, DateLocation); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeDate(t), nil
}
