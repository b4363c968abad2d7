package mpris

import (
	"testing"

	"librepods/internal/airpods"
)

// testController builds a Controller with no bus connection. PauseAll and
// Resume become no-ops, which is exactly what the edge-detector tests
// need; the decision itself is observable through outAndIn and the
// controller's recorded state.
func testController(mode airpods.EarPauseMode) *Controller {
	return &Controller{mode: mode}
}

func TestOutAndIn(t *testing.T) {
	tests := []struct {
		name        string
		mode        airpods.EarPauseMode
		left, right bool
		wantOut     bool
		wantIn      bool
	}{
		{"one-out both in", airpods.EarPauseOneOut, true, true, false, true},
		{"one-out left out", airpods.EarPauseOneOut, false, true, true, false},
		{"one-out both out", airpods.EarPauseOneOut, false, false, true, false},
		{"both-out both in", airpods.EarPauseBothOut, true, true, false, true},
		{"both-out left out", airpods.EarPauseBothOut, false, true, false, true},
		{"both-out both out", airpods.EarPauseBothOut, false, false, true, false},
		{"disabled", airpods.EarPauseDisabled, false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, in := outAndIn(tt.mode, tt.left, tt.right)
			if out != tt.wantOut || in != tt.wantIn {
				t.Errorf("outAndIn(%d, %v, %v) = %v, %v, want %v, %v",
					tt.mode, tt.left, tt.right, out, in, tt.wantOut, tt.wantIn)
			}
		})
	}
}

func TestFirstReportOnlyRecordsState(t *testing.T) {
	c := testController(airpods.EarPauseOneOut)

	// First report, even an "out" state, must not fire an edge.
	c.OnEarDetectionChanged(false, false)
	if !c.prevValid {
		t.Fatal("previous state should be recorded")
	}
	if c.prevLeft || c.prevRight {
		t.Errorf("recorded state = %v, %v, want false, false", c.prevLeft, c.prevRight)
	}
}

func TestPolicyChangeInvalidatesPreviousState(t *testing.T) {
	c := testController(airpods.EarPauseOneOut)
	c.OnEarDetectionChanged(true, true)
	if !c.prevValid {
		t.Fatal("previous state should be valid")
	}

	c.SetEarPauseMode(airpods.EarPauseBothOut)
	if c.prevValid {
		t.Error("policy change must invalidate previous state")
	}
	if got := c.EarPauseMode(); got != airpods.EarPauseBothOut {
		t.Errorf("mode = %d, want both-out", got)
	}
}

func TestDisabledRecordsNothing(t *testing.T) {
	c := testController(airpods.EarPauseDisabled)
	c.OnEarDetectionChanged(false, false)
	if c.prevValid {
		t.Error("disabled policy should not track state")
	}
}

func TestEdgeSequenceOneOut(t *testing.T) {
	c := testController(airpods.EarPauseOneOut)

	steps := []struct {
		left, right           bool
		wantPause, wantResume bool
	}{
		{true, true, false, false},   // first report: record only
		{false, true, true, false},   // one removed: pause edge
		{false, false, false, false}, // second removed: already out
		{false, true, false, false},  // one back in: not "in" under one-out
		{true, true, false, true},    // both in: resume edge
		{true, true, false, false},   // no change
	}

	for i, step := range steps {
		pause, resume := c.evaluate(step.left, step.right)
		if pause != step.wantPause || resume != step.wantResume {
			t.Errorf("step %d (%v, %v): pause=%v resume=%v, want %v, %v",
				i, step.left, step.right, pause, resume, step.wantPause, step.wantResume)
		}
	}
}

func TestEdgeSequenceBothOut(t *testing.T) {
	c := testController(airpods.EarPauseBothOut)

	steps := []struct {
		left, right           bool
		wantPause, wantResume bool
	}{
		{true, true, false, false},
		{false, true, false, false}, // one out: not "out" under both-out
		{false, false, true, false}, // both out: pause edge
		{false, true, false, true},  // one back: resume edge
		{true, true, false, false},
	}

	for i, step := range steps {
		pause, resume := c.evaluate(step.left, step.right)
		if pause != step.wantPause || resume != step.wantResume {
			t.Errorf("step %d (%v, %v): pause=%v resume=%v, want %v, %v",
				i, step.left, step.right, pause, resume, step.wantPause, step.wantResume)
		}
	}
}

func TestResumeWithoutPauseTouchesNothing(t *testing.T) {
	c := testController(airpods.EarPauseOneOut)
	c.Resume() // no paused set, no connection: must be a no-op
	if len(c.paused) != 0 {
		t.Errorf("paused set = %v, want empty", c.paused)
	}
}
