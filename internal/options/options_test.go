package options

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

var testDefaults = Set{Format: "mp3", Pitch: 50, Rate: 50, Voice: "anna", Volume: 50}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(testDefaults, voices.Default())
}

func TestResolveDefaults(t *testing.T) {
	r := newResolver(t)
	for _, overrides := range []map[string]any{nil, {}} {
		set, err := r.Resolve(overrides)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if set != testDefaults {
			t.Fatalf("expected defaults, got %+v", set)
		}
	}
}

func TestResolveOverrides(t *testing.T) {
	r := newResolver(t)
	set, err := r.Resolve(map[string]any{
		Format: "wav",
		Pitch:  0,
		Rate:   "100",
		Voice:  "slt",
		Volume: 75.9,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := Set{Format: "wav", Pitch: 0, Rate: 100, Voice: "slt", Volume: 75}
	if set != want {
		t.Fatalf("expected %+v, got %+v", want, set)
	}

	set, err = r.Resolve(map[string]any{Pitch: json.Number("42")})
	if err != nil {
		t.Fatalf("resolve json number: %v", err)
	}
	if set.Pitch != 42 || set.Voice != "anna" {
		t.Fatalf("unexpected set %+v", set)
	}
}

func TestResolveRejectsOutOfDomain(t *testing.T) {
	r := newResolver(t)
	cases := []struct {
		name      string
		overrides map[string]any
		option    string
	}{
		{"pitch below", map[string]any{Pitch: -1}, Pitch},
		{"pitch above", map[string]any{Pitch: 101}, Pitch},
		{"rate below", map[string]any{Rate: -1}, Rate},
		{"rate above", map[string]any{Rate: "101"}, Rate},
		{"volume below", map[string]any{Volume: -1}, Volume},
		{"volume above", map[string]any{Volume: 101}, Volume},
		{"volume not a number", map[string]any{Volume: "loud"}, Volume},
		{"pitch bool", map[string]any{Pitch: true}, Pitch},
		{"format unknown", map[string]any{Format: "aac"}, Format},
		{"format not string", map[string]any{Format: 3}, Format},
		{"voice unknown", map[string]any{Voice: "hal9000"}, Voice},
		{"unknown key", map[string]any{"speed": 1}, "speed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.overrides)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Option != tc.option {
				t.Fatalf("expected option %s, got %s", tc.option, verr.Option)
			}
		})
	}
}

func TestResolveValidatesMergedDefaults(t *testing.T) {
	bad := testDefaults
	bad.Voice = "nobody"
	r := NewResolver(bad, nil)
	var verr *ValidationError
	if _, err := r.Resolve(nil); !errors.As(err, &verr) || verr.Option != Voice {
		t.Fatalf("expected voice validation error, got %v", err)
	}
	if _, err := r.Resolve(map[string]any{Voice: "slt"}); err != nil {
		t.Fatalf("override should repair the default voice: %v", err)
	}

	bad = testDefaults
	bad.Format = "ogg"
	if _, err := NewResolver(bad, nil).Resolve(nil); err == nil {
		t.Fatal("expected error for unknown default format")
	}
}

func TestParamsEmptyTextBecomesSpace(t *testing.T) {
	p, substituted := NewParams("", testDefaults)
	if !substituted {
		t.Fatal("expected substitution for empty text")
	}
	if got := p.Query().Get(Text); got != " " {
		t.Fatalf("expected single space, got %q", got)
	}

	p, substituted = NewParams("привет", testDefaults)
	if substituted || p.Text != "привет" {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestParamsQuery(t *testing.T) {
	p, _ := NewParams("hello", Set{Format: "wav", Pitch: 10, Rate: 20, Voice: "alan", Volume: 30})
	q := p.Query()
	want := map[string]string{Text: "hello", Format: "wav", Pitch: "10", Rate: "20", Voice: "alan", Volume: "30"}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("expected %s=%s, got %q", k, v, q.Get(k))
		}
	}
	if len(q) != len(want) {
		t.Fatalf("unexpected extra params: %v", q)
	}
}

func TestFromValues(t *testing.T) {
	values := url.Values{"text": {"hi"}, "voice": {"slt"}, "pitch": {"10"}}
	got := FromValues(values)
	if len(got) != 2 || got[Voice] != "slt" || got[Pitch] != "10" {
		t.Fatalf("unexpected options %v", got)
	}
}
