package artifact

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		lines  []string
		want   []string
	}{
		{
			name:  "marker line",
			lines: []string{"Fetching model...", "Running on public URL: https://abcd1234.example.live", ""},
			want:  []string{"https://abcd1234.example.live"},
		},
		{
			name:  "no marker",
			lines: []string{"Running on local URL: http://127.0.0.1:7860"},
			want:  nil,
		},
		{
			name:  "marker without url",
			lines: []string{"Running on public URL: pending"},
			want:  nil,
		},
		{
			name: "ordered and deduplicated",
			lines: []string{
				"Running on public URL: https://b.example.live",
				"noise",
				"Running on public URL: https://a.example.live",
				"Running on public URL: https://b.example.live",
			},
			want: []string{"https://b.example.live", "https://a.example.live"},
		},
		{
			name:  "url stops at whitespace",
			lines: []string{"  Running on public URL: http://x.example.live/path?q=1 (expires in 72h)"},
			want:  []string{"http://x.example.live/path?q=1"},
		},
		{
			name:  "url before marker ignored",
			lines: []string{"https://early.example Running on public URL: https://late.example"},
			want:  []string{"https://late.example"},
		},
		{
			name:   "custom marker",
			marker: "Tunnel ready at",
			lines:  []string{"Tunnel ready at https://tunnel.example"},
			want:   []string{"https://tunnel.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewExtractor(tt.marker).Extract(tt.lines)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	ex := NewExtractor("")
	lines := []string{
		"Running on public URL: https://one.example.live",
		"Running on public URL: https://two.example.live",
	}

	first := ex.Extract(lines)
	second := ex.Extract(lines)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second Extract differs (-first +second):\n%s", diff)
	}
}

func TestNewExtractorDefaultMarker(t *testing.T) {
	if got := NewExtractor("").Marker(); got != DefaultMarker {
		t.Errorf("Marker() = %q, want %q", got, DefaultMarker)
	}
}

func TestSet(t *testing.T) {
	s := NewSet()
	if _, ok := s.First(); ok {
		t.Error("First() on empty set reported ok")
	}

	added := s.Add("https://a", "https://b", "https://a")
	if diff := cmp.Diff([]string{"https://a", "https://b"}, added); diff != "" {
		t.Errorf("Add() mismatch (-want +got):\n%s", diff)
	}

	added = s.Add("https://b", "https://c")
	if diff := cmp.Diff([]string{"https://c"}, added); diff != "" {
		t.Errorf("second Add() mismatch (-want +got):\n%s", diff)
	}

	first, ok := s.First()
	if !ok || first != "https://a" {
		t.Errorf("First() = %q, %v, want https://a, true", first, ok)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	all := s.All()
	all[0] = "mutated"
	if got, _ := s.First(); got != "https://a" {
		t.Error("All() returned a slice aliasing internal state")
	}
}
