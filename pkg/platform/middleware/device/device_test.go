package device

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"bulwark/pkg/requestcontext"
)

func TestDeviceMiddleware(t *testing.T) {
	cfg := &DeviceConfig{CookieName: "__Secure-Device-ID"}

	run := func(mutate func(*http.Request)) string {
		var captured string
		handler := Device(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = requestcontext.DeviceID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		mutate(req)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		return captured
	}

	t.Run("reads header", func(t *testing.T) {
		got := run(func(r *http.Request) { r.Header.Set("X-Device-ID", "ab12") })
		assert.Equal(t, "ab12", got)
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		got := run(func(r *http.Request) {
			r.Header.Set("X-Device-ID", "from-header")
			r.AddCookie(&http.Cookie{Name: "__Secure-Device-ID", Value: "from-cookie"})
		})
		assert.Equal(t, "from-header", got)
	})

	t.Run("falls back to cookie", func(t *testing.T) {
		got := run(func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "__Secure-Device-ID", Value: "device-123"})
		})
		assert.Equal(t, "device-123", got)
	})

	t.Run("ignores malformed and oversized ids", func(t *testing.T) {
		assert.Empty(t, run(func(r *http.Request) { r.Header.Set("X-Device-ID", "a b") }))
		assert.Empty(t, run(func(r *http.Request) { r.Header.Set("X-Device-ID", strings.Repeat("a", MaxDeviceIDLength+1)) }))
	})

	t.Run("absent id leaves context empty", func(t *testing.T) {
		assert.Empty(t, run(func(*http.Request) {}))
	})
}
