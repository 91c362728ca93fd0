package models

import (
	"fmt"
	"strings"
	"time"
)

// Scope is the first key segment of a fixed-window counter.
type Scope string

const ScopeNotification Scope = "notif"

// Window names a fixed-window length.
type Window string

const (
	WindowSecond Window = "second"
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
)

// Duration returns the natural length of the window.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowSecond:
		return time.Second
	case WindowMinute:
		return time.Minute
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// CounterKey is a value object for fixed-window counter keys of the form
// {scope}:{window}:{identifier}. The identifier is sanitized at construction.
type CounterKey struct {
	scope      Scope
	window     Window
	identifier string
}

// UserKey returns the counter key for a user in window w.
func UserKey(scope Scope, w Window, userID string) CounterKey {
	return CounterKey{scope: scope, window: w, identifier: "user_" + sanitizeKeySegment(userID)}
}

// DeviceKey returns the counter key for a device in window w.
func DeviceKey(scope Scope, w Window, deviceID string) CounterKey {
	return CounterKey{scope: scope, window: w, identifier: "device_" + sanitizeKeySegment(deviceID)}
}

// GlobalKey returns the single shared counter for a scope and window.
func GlobalKey(scope Scope, w Window) CounterKey {
	return CounterKey{scope: scope, window: w, identifier: "global"}
}

func (k CounterKey) Window() Window { return k.window }

// String returns the formatted key for storage lookup.
func (k CounterKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.scope, k.window, k.identifier)
}

// BucketKey composes a token-bucket key for a named preset and an actor,
// e.g. bucket:upload:user_42.
func BucketKey(preset, actor string) string {
	return fmt.Sprintf("bucket:%s:%s", sanitizeKeySegment(preset), sanitizeKeySegment(actor))
}

// sanitizeKeySegment escapes delimiter characters in key segments so
// user-controlled identifiers containing ':' cannot address another counter.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// Examples:
//   - "user:admin"  → "user_cadmin"
//   - "user_admin"  → "user__admin"
//   - "user_:admin" → "user___cadmin"
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
