package device

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DeviceServiceSuite struct {
	suite.Suite
	svc *Service
}

func (s *DeviceServiceSuite) SetupTest() {
	s.svc = NewService(true)
}

func TestDeviceServiceSuite(t *testing.T) {
	suite.Run(t, new(DeviceServiceSuite))
}

func (s *DeviceServiceSuite) TestUserAgentParsing() {
	s.Run("empty user agent returns unknown device", func() {
		s.Equal("Unknown Device", ParseUserAgent(""))
	})

	s.Run("chrome on desktop includes browser and OS", func() {
		result := ParseUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		s.Contains(result, "Chrome")
		s.Contains(result, " on ")
		s.NotContains(result, "  ")
	})

	s.Run("safari on iphone includes platform", func() {
		result := ParseUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		s.Contains(result, " on ")
		s.Contains(result, "iPhone")
	})

	s.Run("firefox on linux includes browser and OS", func() {
		result := ParseUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		s.Contains(result, "Firefox")
		s.Contains(result, " on ")
	})

	s.Run("result has no leading or trailing whitespace", func() {
		result := ParseUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
		s.Equal(result, strings.TrimSpace(result))
		s.NotEmpty(result)
	})
}

func (s *DeviceServiceSuite) TestFingerprintStability() {
	s.Run("disabled service returns empty fingerprint", func() {
		s.Empty(NewService(false).ComputeFingerprint("Mozilla/5.0 (Windows NT 10.0) Chrome/120.0.0.0"))
	})

	s.Run("same user agent yields deterministic fingerprint", func() {
		ua := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		fp := s.svc.ComputeFingerprint(ua)
		s.Equal(fp, s.svc.ComputeFingerprint(ua))
		s.Len(fp, 64)
	})

	s.Run("minor version changes do not affect fingerprint", func() {
		fp1 := s.svc.ComputeFingerprint("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36")
		fp2 := s.svc.ComputeFingerprint("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.224 Safari/537.36")
		s.Equal(fp1, fp2)
	})

	s.Run("major version changes affect fingerprint", func() {
		fp1 := s.svc.ComputeFingerprint("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		fp2 := s.svc.ComputeFingerprint("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
		s.NotEqual(fp1, fp2)
	})
}

func (s *DeviceServiceSuite) TestFingerprintComparison() {
	matched, drift := s.svc.CompareFingerprints("a", "b")
	s.False(matched)
	s.True(drift)

	matched, drift = s.svc.CompareFingerprints("abc", "abc")
	s.True(matched)
	s.False(drift)

	matched, drift = s.svc.CompareFingerprints("", "abc")
	s.False(matched)
	s.False(drift)
}

func (s *DeviceServiceSuite) TestMiddlewareStoresDevice() {
	var name, fp string
	h := s.svc.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		name = GetDeviceName(r.Context())
		fp = GetDeviceFingerprint(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	s.Contains(name, "Firefox")
	s.Len(fp, 64)
}
