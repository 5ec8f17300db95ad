package language

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Code
		wantErr bool
	}{
		{"en", English, false},
		{"ZH", Chinese, false},
		{" Japanese ", Japanese, false},
		{"russian", Russian, false},
		{"pt", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, expected %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSupportedHaveNames(t *testing.T) {
	if len(Supported) != 8 {
		t.Fatalf("Expected 8 supported languages, got %d", len(Supported))
	}
	for _, c := range Supported {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
		if c.Name() == string(c) {
			t.Errorf("%q has no display name", c)
		}
	}
	if Code("xx").Valid() {
		t.Error("Expected unknown code to be invalid")
	}
}
