package translate

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"

	"civicmon/internal/analytics"
)

type fakeTranslator struct {
	calls  [][]string
	err    error
	closed bool
}

func (f *fakeTranslator) Translate(_ context.Context, inputs []string, target language.Tag, _ *translate.Options) ([]translate.Translation, error) {
	f.calls = append(f.calls, inputs)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]translate.Translation, len(inputs))
	for i, in := range inputs {
		out[i] = translate.Translation{Text: fmt.Sprintf("[%s] %s", target, in)}
	}
	return out, nil
}

func (f *fakeTranslator) Close() error {
	f.closed = true
	return nil
}

func risks() []analytics.DelayRisk {
	return []analytics.DelayRisk{
		{ComplaintID: "R1", Reasons: []string{"Low citizen engagement (0 votes)", "High department workload"}},
		{ComplaintID: "R2", Reasons: []string{"Low citizen engagement (0 votes)"}},
	}
}

func TestLocalizeReasons(t *testing.T) {
	fake := &fakeTranslator{}
	l := newLocalizer(fake, language.Hindi)

	input := risks()
	got, err := l.LocalizeReasons(context.Background(), input)
	if err != nil {
		t.Fatalf("LocalizeReasons failed: %v", err)
	}

	want := []string{"[hi] Low citizen engagement (0 votes)", "[hi] High department workload"}
	if !reflect.DeepEqual(got[0].Reasons, want) {
		t.Errorf("expected %v but got %v", want, got[0].Reasons)
	}
	if got[1].Reasons[0] != want[0] {
		t.Errorf("expected shared reason to be translated, got %v", got[1].Reasons)
	}
	if len(fake.calls) != 1 || len(fake.calls[0]) != 2 {
		t.Errorf("expected one call with 2 distinct reasons, got %v", fake.calls)
	}
	if input[0].Reasons[0] != "Low citizen engagement (0 votes)" {
		t.Error("input slice was modified")
	}

	// Cached reasons are not sent again.
	if _, err := l.LocalizeReasons(context.Background(), risks()); err != nil {
		t.Fatal(err)
	}
	if len(fake.calls) != 1 {
		t.Errorf("expected cache hit, got %d calls", len(fake.calls))
	}
}

func TestLocalizeReasonsError(t *testing.T) {
	fake := &fakeTranslator{err: fmt.Errorf("quota exceeded")}
	l := newLocalizer(fake, language.Gujarati)

	input := risks()
	got, err := l.LocalizeReasons(context.Background(), input)
	if err == nil {
		t.Fatal("expected translation error")
	}
	if !reflect.DeepEqual(got, input) {
		t.Error("expected English reasons on failure")
	}
}

func TestNilLocalizer(t *testing.T) {
	var l *Localizer
	input := risks()
	got, err := l.LocalizeReasons(context.Background(), input)
	if err != nil || !reflect.DeepEqual(got, input) {
		t.Errorf("nil localizer should pass through, got %v, %v", got, err)
	}
	if err := l.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewLocalizerDisabled(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		lang    string
		wantErr bool
	}{
		{"no api key", "", "hi", false},
		{"english target", "key", "en", false},
		{"regional english", "key", "en-IN", false},
		{"bad tag", "key", "not a tag!", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLocalizer(context.Background(), tt.apiKey, tt.lang)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v but got %v", tt.wantErr, err)
			}
			if l != nil {
				t.Error("expected no localizer")
			}
		})
	}
}
