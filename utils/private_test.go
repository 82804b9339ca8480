package utils

import "testing"

func TestIsPrivateClient(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:52000", true},
		{"[::1]:52000", true},
		{"192.168.1.20:80", true},
		{"10.0.0.5:1234", true},
		{"172.20.3.4:99", true},
		{"localhost:7000", true},
		{"8.8.8.8:443", false},
		{"93.184.216.34:80", false},
		{"example.com:80", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsPrivateClient(c.addr); got != c.want {
			t.Errorf("IsPrivateClient(%q) = %v, want %v", c.addr, got, c.want)
		}
	}
}
