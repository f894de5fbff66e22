package sales

import "testing"

func TestSaleNumberSequence(t *testing.T) {
	cases := []struct {
		latest string
		want   string
	}{
		{"", "V20260001"},
		{"V20260009", "V20260010"},
		{"V20259999", "V20260001"},
		{"V20269999", "V202610000"},
		{"V2026abcd", "V20260001"},
	}
	for _, tc := range cases {
		if got := formatSaleNumber(2026, nextSequence(tc.latest, 2026)); got != tc.want {
			t.Fatalf("latest %q: expected %s, got %s", tc.latest, tc.want, got)
		}
	}
}
