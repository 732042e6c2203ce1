package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys contains attribute keys that are always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"x-cbr-authorization": true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"token":               true,
	"api_token":           true,
	"apitoken":            true,
	"api-token":           true,
	"api_key":             true,
	"apikey":              true,
	"password":            true,
	"secret":              true,
	"bearer":              true,
}

// sensitiveKeywords mark a key as sensitive when contained in it.
// The bare "key" is left out on purpose: it matches far too many
// harmless names.
var sensitiveKeywords = []string{
	"password", "secret", "token", "authorization", "credential",
}

// sensitivePatterns match whole values that are credentials.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
}

// embeddedBearer matches a bearer credential inside a longer string.
var embeddedBearer = regexp.MustCompile(`(?i)(bearer\s+)[^\s"',;]+`)

// SecureHandler wraps an slog.Handler to mask credentials.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because it works with the standard slog API and with any underlying
// handler (text, JSON).
type SecureHandler struct {
	handler slog.Handler
	secrets []string
}

// NewSecureHandler creates a SecureHandler wrapping handler.
// Every non-empty entry of secrets is masked wherever it appears in a
// string value. If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler, secrets ...string) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return &SecureHandler{handler: handler, secrets: kept}
}

// Enabled reports whether the underlying handler handles level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's message and attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, h.scrub(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler with the sanitized attrs added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized), secrets: h.secrets}
}

// WithGroup returns a handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), secrets: h.secrets}
}

func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if isSensitiveValue(v) {
			return slog.String(a.Key, MaskValue)
		}
		return slog.String(a.Key, h.scrub(v))
	case slog.KindAny:
		// errors and Stringers end up as text; scrub that text
		if err, ok := a.Value.Any().(error); ok && err != nil {
			return slog.String(a.Key, h.scrub(err.Error()))
		}
	}

	return a
}

// scrub masks registered secrets and embedded bearer credentials in s.
func (h *SecureHandler) scrub(s string) string {
	for _, secret := range h.secrets {
		s = strings.ReplaceAll(s, secret, MaskValue)
	}
	return embeddedBearer.ReplaceAllString(s, "${1}"+MaskValue)
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if sensitiveKeys[lower] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// Options configures New.
type Options struct {
	// Verbose sets the level to Debug; otherwise Info.
	Verbose bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// Secrets are masked wherever they appear.
	Secrets []string
}

// New creates a *slog.Logger writing to w through a SecureHandler.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(NewSecureHandler(handler, opts.Secrets...))
}
