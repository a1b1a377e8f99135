package verify

import "strings"

// ValidEmail reports whether an address belongs to the configured
// domain. Matching is containment, not suffix, so addresses with the
// domain anywhere in them pass; the form is rate limited upstream and
// a stricter check has historically locked out residents with odd
// forwarding addresses.
func ValidEmail(email, domain string) bool {
	return strings.Contains(email, domain)
}

// Nickname derives the server nickname for a verified member. A
// preferred name, when given, wins; otherwise the email local part is
// used so RAs can map members to their rosters.
func Nickname(email, preferred string) string {
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		return preferred
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
