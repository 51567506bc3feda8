package util

import (
	"fmt"
	"testing"
)

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Frieren", "Frieren"},
		{"Frieren: Beyond Journey's End", "Frieren_Beyond_Journey's_End"},
		{"  Naruto  Shippuden ", "Naruto_Shippuden"},
		{"葬送のフリーレン", "葬送のフリーレン"},
		{"Re:Zero / Season 2", "ReZero_Season_2"},
		{`a<b>c|d?e*f"g`, "abcdefg"},
		{"...", "cover"},
		{"", "cover"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got := SanitizeForFilename(tc.in)
			if got != tc.want {
				t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func ExampleSanitizeForFilename() {
	fmt.Println(SanitizeForFilename("Spy x Family"))
	// Output: Spy_x_Family
}
