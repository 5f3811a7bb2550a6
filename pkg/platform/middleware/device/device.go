// Package device derives a display name and a coarse fingerprint from the
// client's User-Agent. The session manager logs both on sign-in so security
// reviews can tell which browser a session was created from.
package device

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Service computes fingerprints. A disabled service returns empty fingerprints.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent renders "<browser> on <platform>" for display.
func ParseUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownDevice
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + strings.TrimSpace(platform))
}

// ComputeFingerprint hashes browser name, browser major version, OS and the
// mobile bit. Minor browser updates keep the same fingerprint.
func (s *Service) ComputeFingerprint(raw string) string {
	if !s.enabled || strings.TrimSpace(raw) == "" {
		return ""
	}
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")
	mobile := "desktop"
	if ua.Mobile() {
		mobile = "mobile"
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{browser, major, ua.OS(), ua.Platform(), mobile}, "|")))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether the fingerprints match and whether the
// mismatch counts as drift. An empty stored fingerprint never drifts.
func (s *Service) CompareFingerprints(stored, current string) (matched bool, drift bool) {
	if stored == "" {
		return current == "", false
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(current)) == 1 {
		return true, false
	}
	return false, true
}

// Middleware stores the device name and fingerprint in the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		ctx := WithDeviceName(r.Context(), ParseUserAgent(raw))
		if fp := s.ComputeFingerprint(raw); fp != "" {
			ctx = WithDeviceFingerprint(ctx, fp)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
