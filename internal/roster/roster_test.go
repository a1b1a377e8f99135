package roster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Smith, Jordan\n\nTaylor Reed\n  \nCasey\n"))
	}))
	defer server.Close()

	names, err := Fetch(context.Background(), server.Client(), server.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := []string{"Smith, Jordan", "Taylor Reed", "Casey"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("name %d: expected %q, got %q", i, want[i], names[i])
		}
	}
}

func TestFetchNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	if _, err := Fetch(context.Background(), server.Client(), server.URL); err == nil {
		t.Fatal("expected an error for 404")
	}
}

func TestRawURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://hastebin.com/abcdef", "https://hastebin.com/raw/abcdef"},
		{"https://hastebin.com/raw/abcdef", "https://hastebin.com/raw/abcdef"},
		{"https://www.toptal.com/developers/hastebin/abcdef", "https://www.toptal.com/developers/hastebin/raw/abcdef"},
		{"https://example.com/roster.txt", "https://example.com/roster.txt"},
	}
	for _, tc := range cases {
		if got := RawURL(tc.in); got != tc.want {
			t.Errorf("RawURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFirstName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Smith, Jordan", "Jordan"},
		{"Taylor Reed", "Taylor"},
		{"Casey", "Casey"},
		{"  Smith ,  Jordan  ", "Jordan"},
	}
	for _, tc := range cases {
		if got := FirstName(tc.in); got != tc.want {
			t.Errorf("FirstName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCommunityName(t *testing.T) {
	if got := CommunityName("Smith, Jordan"); got != "RA Jordan's Community" {
		t.Fatalf("unexpected community name %q", got)
	}
}
