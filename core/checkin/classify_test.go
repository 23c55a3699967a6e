package checkin

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(100 * time.Minute)

	tests := []struct {
		name string
		now  time.Time
		want RecordStatus
	}{
		{name: "at start", now: start, want: RecordNormal},
		{name: "before threshold", now: start.Add(79 * time.Minute), want: RecordNormal},
		{name: "at threshold", now: start.Add(80 * time.Minute), want: RecordNormal},
		{name: "past threshold", now: start.Add(81 * time.Minute), want: RecordLate},
		{name: "at end", now: end, want: RecordLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(start, end, tt.now); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyZeroWindow(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if got := classify(at, at, at); got != RecordNormal {
		t.Errorf("classify() = %v, want %v", got, RecordNormal)
	}
	if got := classify(at, at, at.Add(time.Second)); got != RecordLate {
		t.Errorf("classify() = %v, want %v", got, RecordLate)
	}
}
