package domain

import "testing"

func TestParseHumanSize(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"4.5 GB", 4831838208},
		{"500 MB", 524288000},
		{"1.2 TB", 1319413953331},
		{"1024 KB", 1048576},
		{"", 0},
		{"not a size", 0},
		{"512", 512},
		{"2 ГБ", 2 * 1024 * 1024 * 1024},
	}
	for _, c := range cases {
		if got := ParseHumanSize(c.raw); got != c.want {
			t.Errorf("ParseHumanSize(%q) = %d, want %d", c.raw, got, c.want)
		}
	}
}
