package gateway

import "testing"

func TestDomainMatcherExactAndWildcard(t *testing.T) {
	cases := []struct {
		pattern string
		host    string
		want    bool
	}{
		{"example.com", "example.com", true},
		{"example.com", "other.com", false},
		{"*.example.com", "api.example.com", true},
		{"*.example.com", "example.com", false},
		{"*.example.com", "a.b.example.com", false},
		{"", "anything.at.all", true},
		{"EXAMPLE.com", "example.COM", true},
	}
	for _, c := range cases {
		if got := DomainMatcher(c.pattern).Match(c.host); got != c.want {
			t.Errorf("DomainMatcher(%q).Match(%q) = %v, want %v", c.pattern, c.host, got, c.want)
		}
	}
}

func TestStripPort(t *testing.T) {
	cases := map[string]string{
		"example.com:8080": "example.com",
		"example.com":      "example.com",
		"[::1]:9090":       "::1",
	}
	for in, want := range cases {
		if got := StripPort(in); got != want {
			t.Errorf("StripPort(%q) = %q, want %q", in, got, want)
		}
	}
}
