package options

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

// Option and query parameter names understood by the RHVoice server.
const (
	Format = "format"
	Pitch  = "pitch"
	Rate   = "rate"
	Voice  = "voice"
	Volume = "volume"
	Text   = "text"
)

const (
	MinLevel = 0
	MaxLevel = 100
)

var (
	formats = []string{"flac", "mp3", "opus", "wav"}
	names   = []string{Format, Pitch, Rate, Voice, Volume}
)

// Formats returns the audio formats the server can produce.
func Formats() []string { return append([]string(nil), formats...) }

// Names returns the option names a caller may override.
func Names() []string { return append([]string(nil), names...) }

// IsFormat reports whether f is a supported audio format.
func IsFormat(f string) bool {
	for _, candidate := range formats {
		if candidate == f {
			return true
		}
	}
	return false
}

// Set is a fully resolved option set.
type Set struct {
	Format string
	Pitch  int
	Rate   int
	Voice  string
	Volume int
}

// ValidationError identifies the option that failed validation.
type ValidationError struct {
	Option string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Option, e.Value, e.Reason)
}

// Validate checks every field of s against its domain.
func Validate(s Set, catalog *voices.Catalog) error {
	if !IsFormat(s.Format) {
		return &ValidationError{Option: Format, Value: s.Format, Reason: "must be one of " + strings.Join(formats, "|")}
	}
	for _, lvl := range []struct {
		name  string
		value int
	}{{Pitch, s.Pitch}, {Rate, s.Rate}, {Volume, s.Volume}} {
		if err := checkLevel(lvl.name, lvl.value); err != nil {
			return err
		}
	}
	if !catalog.HasVoice(s.Voice) {
		return &ValidationError{Option: Voice, Value: s.Voice, Reason: "unknown voice"}
	}
	return nil
}

func checkLevel(name string, v int) error {
	if v < MinLevel || v > MaxLevel {
		return &ValidationError{Option: name, Value: v, Reason: fmt.Sprintf("must be between %d and %d", MinLevel, MaxLevel)}
	}
	return nil
}

// Resolver merges per-call overrides with provider defaults.
type Resolver struct {
	defaults Set
	catalog  *voices.Catalog
}

// NewResolver returns a resolver bound to catalog. Defaults are not checked
// here; configuration loading validates them, and Resolve rejects any merged
// set that is still out of domain.
func NewResolver(defaults Set, catalog *voices.Catalog) *Resolver {
	if catalog == nil {
		catalog = voices.Default()
	}
	return &Resolver{defaults: defaults, catalog: catalog}
}

func (r *Resolver) Defaults() Set { return r.defaults }

func (r *Resolver) Catalog() *voices.Catalog { return r.catalog }

// Resolve fills omitted options from the defaults and validates the rest.
// Unknown keys are rejected.
func (r *Resolver) Resolve(overrides map[string]any) (Set, error) {
	set := r.defaults
	for key, raw := range overrides {
		var err error
		switch key {
		case Format:
			set.Format, err = r.format(raw)
		case Pitch:
			set.Pitch, err = level(Pitch, raw)
		case Rate:
			set.Rate, err = level(Rate, raw)
		case Voice:
			set.Voice, err = r.voice(raw)
		case Volume:
			set.Volume, err = level(Volume, raw)
		default:
			err = &ValidationError{Option: key, Value: raw, Reason: "unsupported option"}
		}
		if err != nil {
			return Set{}, err
		}
	}
	if err := Validate(set, r.catalog); err != nil {
		return Set{}, err
	}
	return set, nil
}

func (r *Resolver) format(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok || !IsFormat(s) {
		return "", &ValidationError{Option: Format, Value: raw, Reason: "must be one of " + strings.Join(formats, "|")}
	}
	return s, nil
}

func (r *Resolver) voice(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok || !r.catalog.HasVoice(s) {
		return "", &ValidationError{Option: Voice, Value: raw, Reason: "unknown voice"}
	}
	return s, nil
}

func level(name string, raw any) (int, error) {
	v, err := coerceInt(raw)
	if err != nil {
		return 0, &ValidationError{Option: name, Value: raw, Reason: err.Error()}
	}
	if err := checkLevel(name, v); err != nil {
		return 0, err
	}
	return v, nil
}

// coerceInt converts numeric values and decimal strings to int. Floats are
// truncated toward zero.
func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("value out of range")
		}
		return int(v), nil
	case float32:
		return truncate(float64(v))
	case float64:
		return truncate(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected int")
		}
		return truncate(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("expected int")
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected int")
	}
}

func truncate(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("expected int")
	}
	return int(f), nil
}

// Params is the parameter bag sent to the server: the text plus a resolved set.
type Params struct {
	Text string
	Set
}

// NewParams stitches text into the set. Empty text is replaced with a single
// space; the second return value reports the substitution.
func NewParams(text string, set Set) (Params, bool) {
	if text == "" {
		return Params{Text: " ", Set: set}, true
	}
	return Params{Text: text, Set: set}, false
}

// Query renders the params as URL query values.
func (p Params) Query() url.Values {
	q := url.Values{}
	q.Set(Text, p.Text)
	q.Set(Format, p.Format)
	q.Set(Pitch, strconv.Itoa(p.Pitch))
	q.Set(Rate, strconv.Itoa(p.Rate))
	q.Set(Voice, p.Voice)
	q.Set(Volume, strconv.Itoa(p.Volume))
	return q
}

// FromValues picks the option names present in form or query values.
func FromValues(values url.Values) map[string]any {
	out := make(map[string]any)
	for _, name := range names {
		if values.Has(name) {
			out[name] = values.Get(name)
		}
	}
	return out
}

// ContentType maps a format to its MIME type.
func ContentType(format string) string {
	switch format {
	case "flac":
		return "audio/flac"
	case "mp3":
		return "audio/mpeg"
	case "opus":
		return "audio/ogg"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
