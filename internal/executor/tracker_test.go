package executor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOutputTrackerDiff(t *testing.T) {
	tr := NewOutputTracker()

	steps := []struct {
		name   string
		index  int
		output []string
		want   []string
	}{
		{"first output is new", 0, []string{"a"}, []string{"a"}},
		{"unchanged output yields nothing", 0, []string{"a"}, nil},
		{"appended lines only", 0, []string{"a", "b", "c"}, []string{"b", "c"}},
		{"other unit tracked separately", 1, []string{"a"}, []string{"a"}},
		{"replaced output returned whole", 0, []string{"x"}, []string{"x"}},
		{"shrunk output returned whole", 0, nil, nil},
	}

	for _, st := range steps {
		got := tr.Diff(st.index, st.output)
		if diff := cmp.Diff(st.want, got); diff != "" {
			t.Errorf("%s: Diff mismatch (-want +got):\n%s", st.name, diff)
		}
	}
}

func TestOutputTrackerLastAndReset(t *testing.T) {
	tr := NewOutputTracker()
	in := []string{"one", "two"}
	tr.Diff(2, in)
	in[0] = "mutated"

	if diff := cmp.Diff([]string{"one", "two"}, tr.Last(2)); diff != "" {
		t.Errorf("Last mismatch (-want +got):\n%s", diff)
	}

	tr.Reset()
	if got := tr.Last(2); len(got) != 0 {
		t.Errorf("Last after Reset = %v, want empty", got)
	}
	if got := tr.Diff(2, []string{"one"}); len(got) != 1 {
		t.Errorf("Diff after Reset = %v, want full output", got)
	}
}
