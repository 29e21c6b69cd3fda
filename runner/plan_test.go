package runner

import "testing"

func floatPtr(f float64) *float64 {
	return &f
}

func TestWaitMillis(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want int
	}{
		{"seconds", Step{Action: ActionWait, Seconds: floatPtr(3)}, 3000},
		{"milliseconds", Step{Action: ActionWait, Milliseconds: floatPtr(500)}, 500},
		{"duration string seconds", Step{Action: ActionWait, Duration: "2s"}, 2000},
		{"duration string milliseconds", Step{Action: ActionWait, Duration: "3000ms"}, 3000},
		{"duration string fractional", Step{Action: ActionWait, Duration: "1.5s"}, 1500},
		{"duration string verbose", Step{Action: ActionWait, Duration: "3 seconds"}, 3000},
		{"duration string bare number counts as seconds", Step{Action: ActionWait, Duration: "3"}, 3000},
		{"duration number counts as milliseconds", Step{Action: ActionWait, Duration: float64(2500)}, 2500},
		{"no timing field", Step{Action: ActionWait}, 2000},
		{"negative milliseconds", Step{Action: ActionWait, Milliseconds: floatPtr(-5)}, 2000},
		{"negative seconds", Step{Action: ActionWait, Seconds: floatPtr(-1)}, 2000},
		{"garbage duration", Step{Action: ActionWait, Duration: "soon"}, 2000},
		{"milliseconds beats duration", Step{Action: ActionWait, Milliseconds: floatPtr(100), Duration: "9s"}, 100},
		{"duration beats seconds", Step{Action: ActionWait, Duration: "2s", Seconds: floatPtr(9)}, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.waitMillis(); got != tt.want {
				t.Fatalf("waitMillis() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWaitMillisDeterministic(t *testing.T) {
	step := Step{Action: ActionWait, Duration: "2s"}
	first := step.waitMillis()
	for i := 0; i < 5; i++ {
		if got := step.waitMillis(); got != first {
			t.Fatalf("waitMillis() not deterministic: got %d then %d", first, got)
		}
	}
}

func TestResolveLimit(t *testing.T) {
	if got := (Step{Limit: 5}).resolveLimit(20); got != 5 {
		t.Errorf("limit field ignored, got %d", got)
	}
	if got := (Step{Count: 7}).resolveLimit(20); got != 7 {
		t.Errorf("count field ignored, got %d", got)
	}
	if got := (Step{Limit: 5, Count: 7}).resolveLimit(20); got != 5 {
		t.Errorf("limit should win over count, got %d", got)
	}
	if got := (Step{}).resolveLimit(20); got != 20 {
		t.Errorf("fallback not applied, got %d", got)
	}
}
