package monitors

import (
	"testing"
	"time"
)

func TestWindBelowWarnThresholdNeverWarns(t *testing.T) {
	w := NewWindMonitor(10, 20)
	warn, exceeded := w.Evaluate(5, time.Unix(0, 0))
	if warn || exceeded {
		t.Fatalf("got (%v, %v)", warn, exceeded)
	}
}

func TestWindWarnRespectsQuietPeriod(t *testing.T) {
	w := NewWindMonitor(10, 20)
	warn, _ := w.Evaluate(15, time.Unix(0, 0))
	if !warn {
		t.Fatalf("expected the first warn-threshold breach to warn")
	}
	warn, _ = w.Evaluate(15, time.Unix(30, 0))
	if warn {
		t.Fatalf("expected the quiet period to suppress a repeat warning")
	}
	warn, _ = w.Evaluate(15, time.Unix(61, 0))
	if !warn {
		t.Fatalf("expected a new warning once the quiet period elapses")
	}
}

func TestWindMaxExceededHasNoQuietPeriod(t *testing.T) {
	w := NewWindMonitor(10, 20)
	_, exceeded := w.Evaluate(25, time.Unix(0, 0))
	if !exceeded {
		t.Fatalf("expected exceeded on the first max-threshold breach")
	}
	_, exceeded = w.Evaluate(25, time.Unix(1, 0))
	if !exceeded {
		t.Fatalf("expected exceeded to repeat unconditionally, unlike warn")
	}
}
