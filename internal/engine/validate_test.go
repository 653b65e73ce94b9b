package engine

import (
	"strings"
	"testing"
)

func TestValidateMessage(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"normal", "hello there", false},
		{"empty", "", true},
		{"exactly max chars", strings.Repeat("a", MaxTextChars), false},
		{"too many chars", strings.Repeat("a", MaxTextChars+1), true},
		{"too many bytes", strings.Repeat("é", MaxMessageBytes/2 + 1), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}
	for _, tc := range cases {
		err := ValidateMessage(tc.text)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: ValidateMessage err=%v, wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}
