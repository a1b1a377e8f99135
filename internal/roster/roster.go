// Package roster fetches RA rosters and derives community naming.
package roster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Fetch downloads a roster and returns one entry per non-blank line.
// Paste-service URLs are rewritten to their raw form so the body is
// plain text rather than the viewer page.
func Fetch(ctx context.Context, client *http.Client, url string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, RawURL(url), nil)
	if err != nil {
		return nil, fmt.Errorf("roster request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch roster: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(body), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// RawURL rewrites a hastebin-style viewer URL to its raw endpoint.
// URLs already pointing at /raw/ and non-paste URLs pass through.
func RawURL(url string) string {
	for _, host := range []string{"hastebin.com/", "haste.zneix.eu/", "toptal.com/developers/hastebin/"} {
		idx := strings.Index(url, host)
		if idx < 0 {
			continue
		}
		rest := url[idx+len(host):]
		if strings.HasPrefix(rest, "raw/") {
			return url
		}
		return url[:idx+len(host)] + "raw/" + rest
	}
	return url
}

// FirstName extracts an RA's first name from a roster entry. Entries
// come in "Last, First" or "First Last" form.
func FirstName(entry string) string {
	entry = strings.TrimSpace(entry)
	if comma := strings.Index(entry, ","); comma >= 0 {
		return strings.TrimSpace(entry[comma+1:])
	}
	if space := strings.Index(entry, " "); space >= 0 {
		return entry[:space]
	}
	return entry
}

// CommunityName is the display name for an RA's community category,
// role, and channels.
func CommunityName(entry string) string {
	return fmt.Sprintf("RA %s's Community", FirstName(entry))
}
