package executor

import "slices"

// OutputTracker remembers the output last seen for each unit so repeated
// polls only hand new lines onward. One tracker lives for one generation of
// a run and is used from a single goroutine.
type OutputTracker struct {
	seen map[int][]string
}

// NewOutputTracker creates an empty tracker.
func NewOutputTracker() *OutputTracker {
	return &OutputTracker{seen: make(map[int][]string)}
}

// Diff records output as the latest for index and returns the lines that
// were not present last time. Output that no longer extends the previous
// snapshot (the unit was cleared and rerun) is returned whole.
func (t *OutputTracker) Diff(index int, output []string) []string {
	prev := t.seen[index]
	t.seen[index] = slices.Clone(output)

	if len(output) >= len(prev) && slices.Equal(output[:len(prev)], prev) {
		fresh := output[len(prev):]
		if len(fresh) == 0 {
			return nil
		}
		return slices.Clone(fresh)
	}
	return slices.Clone(output)
}

// Last returns the latest recorded output for index.
func (t *OutputTracker) Last(index int) []string {
	return slices.Clone(t.seen[index])
}

// Reset forgets everything, as if the tracker were new.
func (t *OutputTracker) Reset() {
	clear(t.seen)
}
