package format

import "testing"

func TestMD(t *testing.T) {
	tests := map[string]string{
		"snake_case *bold* [x]": `snake\_case \*bold\* \[x]`,
		"code `x`":              "code \\`x\\`",
		"Tafsir: al-Fatiha":     "Tafsir: al-Fatiha",
	}
	for in, want := range tests {
		if got := MD(in); got != want {
			t.Errorf("MD(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMDv2(t *testing.T) {
	tests := map[string]string{
		"a.b-c!":  `a\.b\-c\!`,
		"(1+1)=2": `\(1\+1\)\=2`,
		`a\b`:     `a\\b`,
	}
	for in, want := range tests {
		if got := MDv2(in); got != want {
			t.Errorf("MDv2(%q) = %q, want %q", in, got, want)
		}
	}
}
