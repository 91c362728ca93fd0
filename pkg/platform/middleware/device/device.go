package device

import (
	"net/http"
	"regexp"

	"bulwark/pkg/requestcontext"
)

// DefaultHeaderName carries the device identifier for API clients.
const DefaultHeaderName = "X-Device-ID"

// MaxDeviceIDLength bounds device identifiers. They become counter key segments.
const MaxDeviceIDLength = 128

var validDeviceID = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// DeviceConfig holds configuration for the Device middleware.
type DeviceConfig struct {
	// HeaderName is checked first; defaults to DefaultHeaderName.
	HeaderName string
	// CookieName is the fallback for browser clients (e.g., "__Secure-Device-ID").
	CookieName string
}

// Device stores the caller's device identifier in the context. The header
// wins over the cookie; malformed or oversized values are ignored so the
// device-scope limit is simply skipped for that request.
func Device(cfg *DeviceConfig) func(http.Handler) http.Handler {
	header := DefaultHeaderName
	cookieName := ""
	if cfg != nil {
		if cfg.HeaderName != "" {
			header = cfg.HeaderName
		}
		cookieName = cfg.CookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := r.Header.Get(header)
			if deviceID == "" && cookieName != "" {
				if cookie, err := r.Cookie(cookieName); err == nil {
					deviceID = cookie.Value
				}
			}
			if isValid(deviceID) {
				r = r.WithContext(requestcontext.WithDeviceID(r.Context(), deviceID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isValid(id string) bool {
	return id != "" && len(id) <= MaxDeviceIDLength && validDeviceID.MatchString(id)
}
