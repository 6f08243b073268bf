package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadLocation(t *testing.T) {
	cases := map[string]string{
		"":                       "UTC",
		"utc":                    "UTC",
		"Europe/Moscow":          "Europe/Moscow",
		"europe/moscow":          "Europe/Moscow",
		"america/new york":       "America/New_York",
		"America/Port-au-Prince": "America/Port-au-Prince",
	}
	for raw, want := range cases {
		loc, err := LoadLocation(raw)
		if err != nil {
			t.Fatalf("%q: не ожидали ошибку: %v", raw, err)
		}
		if loc.String() != want {
			t.Fatalf("%q: ожидали %s, получили %s", raw, want, loc)
		}
	}
	if loc, _ := LoadLocation(""); loc != time.UTC {
		t.Fatalf("пустое значение должно давать UTC")
	}
}

func TestLoadLocationInvalid(t *testing.T) {
	if _, err := LoadLocation("Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("ожидали ErrInvalidTimezone, получили %v", err)
	}
}
