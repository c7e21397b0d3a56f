package traffic

import "testing"

func TestPredict(t *testing.T) {
	tests := []struct {
		district string
		hour     int
		expected Level
	}{
		// Peak morning window [8,10]
		{"city-center", 8, High},
		{"city-center", 10, High},
		{"old-town", 9, High},
		{"riverside", 9, Medium},
		{"industrial-park", 9, Low},
		{"outskirts", 8, Low},

		// Peak evening window [17,19]
		{"city-center", 17, High},
		{"city-center", 19, High},
		{"riverside", 18, Medium},

		// Off peak
		{"city-center", 12, Low},
		{"city-center", 7, Low},
		{"city-center", 11, Low},
		{"city-center", 20, Low},
		{"riverside", 3, Low},
		{"outskirts", 23, Low},

		// Unknown districts get the default bias of 1
		{"nowhere", 9, Medium},
		{"nowhere", 12, Low},
	}

	for _, tc := range tests {
		t.Run(tc.district, func(t *testing.T) {
			got := Predict(tc.district, tc.hour)
			if got != tc.expected {
				t.Errorf("Predict(%q, %d) = %s, expected %s", tc.district, tc.hour, got, tc.expected)
			}
		})
	}
}

func TestPredictDeterministic(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		for _, district := range Districts() {
			first := Predict(district, hour)
			for i := 0; i < 3; i++ {
				if got := Predict(district, hour); got != first {
					t.Fatalf("Predict(%q, %d) not deterministic: %s then %s", district, hour, first, got)
				}
			}
			if first != Low && first != Medium && first != High {
				t.Fatalf("Predict(%q, %d) = %d, outside the level set", district, hour, first)
			}
		}
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{Low, "Low"},
		{Medium, "Medium"},
		{High, "High"},
		{Level(42), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.level.String(); got != tc.expected {
			t.Errorf("Level(%d).String() = %q, expected %q", tc.level, got, tc.expected)
		}
	}
}

func TestLevelJSONRoundTrip(t *testing.T) {
	for _, l := range []Level{Low, Medium, High} {
		data, err := l.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON(%s): %v", l, err)
		}
		var back Level
		if err := back.UnmarshalJSON(data); err != nil {
			t.Fatalf("UnmarshalJSON(%s): %v", data, err)
		}
		if back != l {
			t.Errorf("round trip %s -> %s", l, back)
		}
	}
}
