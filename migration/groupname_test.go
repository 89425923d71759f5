package migration

import "testing"

func TestInferGroupName(t *testing.T) {
	cases := []struct {
		name         string
		descriptions []string
		want         string
	}{
		{
			name:         "empty input",
			descriptions: nil,
			want:         "",
		},
		{
			name: "common two word phrase beats single word",
			descriptions: []string{
				"Omzet workshops binnenland",
				"Omzet workshops buitenland",
				"Omzet advies",
			},
			want: "omzet workshops",
		},
		{
			name: "single shared word",
			descriptions: []string{
				"Huur kantoor",
				"Huur opslag",
				"Huur werkplaats",
			},
			want: "huur",
		},
		{
			name: "majority threshold rounds up",
			descriptions: []string{
				"Bankkosten Rabobank",
				"Bankkosten ING",
				"Verzekeringen",
			},
			// 2 of 3 meets the ceil(3/2)=2 threshold.
			want: "bankkosten",
		},
		{
			name: "no phrase reaches the threshold",
			descriptions: []string{
				"Telefoonkosten",
				"Portokosten",
				"Drukwerk",
				"Representatie",
			},
			want: "",
		},
		{
			name: "short single words are suppressed",
			descriptions: []string{
				"BV Holding",
				"BV Beheer",
				"BV Vastgoed",
			},
			want: "",
		},
		{
			name: "short numeric phrases are suppressed",
			descriptions: []string{
				"Rekening 12",
				"Spaar 12",
				"Lopend 12",
			},
			want: "",
		},
		{
			name: "punctuation and case are normalized",
			descriptions: []string{
				"Reservering: vakantiegeld (mei)",
				"reservering vakantiegeld juni",
				"RESERVERING VAKANTIEGELD",
			},
			want: "reservering vakantiegeld",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InferGroupName(tc.descriptions)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
