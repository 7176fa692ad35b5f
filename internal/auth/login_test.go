package auth

import "testing"

func TestSolveCaptcha(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"addition", "5 + 3", "8", false},
		{"extra whitespace", "  12   +  7 ", "19", false},
		{"subtraction", "12 - 4", "8", false},
		{"multiplication", "3 x 4", "12", false},
		{"unicode times", "6 × 7", "42", false},
		{"too short", "5 +", "", true},
		{"not numbers", "a + b", "", true},
		{"unknown operator", "8 / 2", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SolveCaptcha(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v but got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q but got %q", tt.want, got)
			}
		})
	}
}
