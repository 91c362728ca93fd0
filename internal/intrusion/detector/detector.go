// Package detector finds attack signatures in request content.
//
// The detector is stateless and safe for concurrent use. It only reports
// matches; violation counting and blocking live in the intrusion service.
package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"bulwark/internal/intrusion/config"
	"bulwark/internal/intrusion/models"
)

// maxJSONDepth stops walking pathological nesting.
const maxJSONDepth = 32

type Detector struct {
	signatures []Signature
	honeypots  []string
	excluded   []string
	maxBytes   int64
	scanUA     bool
}

type Option func(*Detector)

// WithSignatures appends signatures to the defaults.
func WithSignatures(sigs ...Signature) Option {
	return func(d *Detector) {
		d.signatures = append(d.signatures, sigs...)
	}
}

// New builds a detector from cfg, loading cfg.RulesFile when set.
func New(cfg *config.Config, opts ...Option) (*Detector, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d := &Detector{
		signatures: DefaultSignatures(),
		maxBytes:   cfg.MaxScanBytes,
		scanUA:     cfg.ScanUserAgent,
	}
	for _, h := range cfg.HoneypotPaths {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			d.honeypots = append(d.honeypots, h)
		}
	}
	for _, e := range cfg.ExcludedPaths {
		if e = strings.TrimSpace(e); e != "" {
			d.excluded = append(d.excluded, e)
		}
	}
	if d.maxBytes <= 0 {
		d.maxBytes = 1 << 20
	}
	if cfg.RulesFile != "" {
		extra, err := LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load intrusion rules: %w", err)
		}
		d.signatures = append(d.signatures, extra...)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// IsHoneypot reports whether p hits a decoy: exactly, as a sub-path, or via
// a path.Match glob. Matching is case-insensitive.
func (d *Detector) IsHoneypot(p string) bool {
	p = strings.ToLower(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	for _, h := range d.honeypots {
		if p == h || strings.HasPrefix(p, strings.TrimRight(h, "/")+"/") {
			return true
		}
		if ok, err := path.Match(h, p); err == nil && ok {
			return true
		}
	}
	return false
}

// Excluded reports whether p skips the content scan.
func (d *Detector) Excluded(p string) bool {
	for _, e := range d.excluded {
		if strings.HasPrefix(p, e) {
			return true
		}
	}
	return false
}

// Inspect scans a request. The User-Agent is checked on every path; path,
// query, route params and body are skipped for excluded paths. The body is
// restored so the next handler reads it in full.
func (d *Detector) Inspect(r *http.Request) (*models.Match, error) {
	if d.scanUA {
		if m := d.CheckUserAgent(r.UserAgent()); m != nil {
			return m, nil
		}
	}
	if d.Excluded(r.URL.Path) {
		return nil, nil
	}

	if m := d.scanValue(r.URL.EscapedPath(), models.LocationPath); m != nil {
		return m, nil
	}
	for key, values := range r.URL.Query() {
		if m := d.scanValue(key, models.LocationQuery); m != nil {
			return m, nil
		}
		for _, v := range values {
			if m := d.scanValue(v, models.LocationQuery); m != nil {
				return m, nil
			}
		}
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for _, v := range rctx.URLParams.Values {
			if m := d.scanValue(v, models.LocationParam); m != nil {
				return m, nil
			}
		}
	}
	return d.inspectBody(r)
}

// CheckUserAgent flags known attack tooling.
func (d *Detector) CheckUserAgent(raw string) *models.Match {
	if raw == "" {
		return nil
	}
	ua := useragent.New(raw)
	name, _ := ua.Browser()
	name = strings.ToLower(name)
	lower := strings.ToLower(raw)
	for _, tool := range attackTools {
		if name == tool || strings.Contains(lower, tool) {
			return &models.Match{Category: models.CategoryScanner, Signature: "ua_" + tool, Location: models.LocationUserAgent}
		}
	}
	return nil
}

// ScanString checks one value, raw and once URL-decoded.
func (d *Detector) ScanString(s string) *models.Match {
	return d.scanValue(s, models.LocationBody)
}

func (d *Detector) scanValue(s string, loc models.Location) *models.Match {
	if s == "" {
		return nil
	}
	if m := d.match(s, loc); m != nil {
		return m
	}
	if decoded, err := url.QueryUnescape(s); err == nil && decoded != s {
		return d.match(decoded, loc)
	}
	return nil
}

func (d *Detector) match(s string, loc models.Location) *models.Match {
	for _, sig := range d.signatures {
		if sig.Pattern.MatchString(s) {
			return &models.Match{Category: sig.Category, Signature: sig.Name, Location: loc}
		}
	}
	return nil
}

func (d *Detector) inspectBody(r *http.Request) (*models.Match, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !scannable(mediaType) {
		return nil, nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, d.maxBytes))
	// Whatever was read goes back in front of the unread remainder.
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(buf) == 0 {
		return nil, nil
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var v any
		if err := json.Unmarshal(buf, &v); err == nil {
			return d.walk(v, 0), nil
		}
	case mediaType == "application/x-www-form-urlencoded":
		if form, err := url.ParseQuery(string(buf)); err == nil {
			for key, values := range form {
				if m := d.scanValue(key, models.LocationBody); m != nil {
					return m, nil
				}
				for _, v := range values {
					if m := d.scanValue(v, models.LocationBody); m != nil {
						return m, nil
					}
				}
			}
			return nil, nil
		}
	}
	return d.scanValue(string(buf), models.LocationBody), nil
}

// walk visits every string leaf and map key of a decoded JSON value.
func (d *Detector) walk(v any, depth int) *models.Match {
	if depth > maxJSONDepth {
		return nil
	}
	switch t := v.(type) {
	case string:
		return d.scanValue(t, models.LocationBody)
	case map[string]any:
		for k, child := range t {
			if m := d.scanValue(k, models.LocationBody); m != nil {
				return m
			}
			if m := d.walk(child, depth+1); m != nil {
				return m
			}
		}
	case []any:
		for _, child := range t {
			if m := d.walk(child, depth+1); m != nil {
				return m
			}
		}
	}
	return nil
}

// scannable reports whether a body of this media type is text. Binary
// uploads are not scanned.
func scannable(mediaType string) bool {
	switch {
	case mediaType == "":
		return true
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return true
	case mediaType == "application/x-www-form-urlencoded", mediaType == "application/xml":
		return true
	}
	return false
}
