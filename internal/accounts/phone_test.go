package accounts

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9876543210", "9876543210"},
		{"+91-9876543210", "9876543210"},
		{"+91 98765 43210", "9876543210"},
		{"919876543210", "9876543210"},
		{"(987) 654-3210", "9876543210"},
		{"0919876543210", "9876543210"},
		{"12345", "12345"},
		{"  98765-43210 ", "9876543210"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidPhone(t *testing.T) {
	if !validPhone("9876543210") {
		t.Error("expected 10 digits to be valid")
	}
	for _, in := range []string{"", "12345", "98765a3210", "98765432101"} {
		if validPhone(in) {
			t.Errorf("expected %q to be invalid", in)
		}
	}
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != 6 || code[0] == '0' {
			t.Fatalf("unexpected code %q", code)
		}
	}
}
