package config

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata"
)

// ErrInvalidTimezone возвращается для неизвестного часового пояса.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Location возвращает часовой пояс из TZ.
func (c AppConfig) Location() (*time.Location, error) {
	return LoadLocation(c.TZ)
}

// LoadLocation загружает часовой пояс, допуская вольное написание:
// "europe/moscow", "America/New York", "utc".
func LoadLocation(raw string) (*time.Location, error) {
	candidate := strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")
	if candidate == "" {
		return time.UTC, nil
	}
	if loc, err := time.LoadLocation(candidate); err == nil {
		return loc, nil
	}
	if strings.EqualFold(candidate, "utc") {
		return time.UTC, nil
	}

	parts := strings.Split(strings.ToLower(candidate), "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	if loc, err := time.LoadLocation(strings.Join(parts, "/")); err == nil {
		return loc, nil
	}
	return nil, ErrInvalidTimezone
}
