package types

import "time"

func ToNillableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func FromNillableString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ToNillableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func FromNillableTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
