package alias

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxTags      = 10
	maxTagLen    = 50
	maxTitleLen  = 200
	maxSubLabels = 4
)

// suspiciousPatterns rejects destinations that commonly carry abuse payloads.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)\.(exe|scr|msi|bat|cmd)$`),
	regexp.MustCompile(`%0[0-9a-fA-F]`),
}

// Record is an alias mapping a short code to a destination URL.
type Record struct {
	ID          uuid.UUID
	OwnerID     string
	Destination string
	Code        string
	Title       string
	Tags        []string
	Active      bool
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the record's expiry is set and in the past.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// ValidationError describes a rejected field on a create or update request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SanitizeDestination validates a destination URL and returns it with the
// fragment stripped. Only absolute http/https URLs are accepted.
func SanitizeDestination(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Field: "destination", Reason: "must not be empty"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: "destination", Reason: "not a valid URL"}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ValidationError{Field: "destination", Reason: "scheme must be http or https"}
	}

	if u.Host == "" {
		return "", &ValidationError{Field: "destination", Reason: "host must not be empty"}
	}

	if subdomainLabels(u.Hostname()) > maxSubLabels {
		return "", &ValidationError{Field: "destination", Reason: "too many subdomain levels"}
	}

	for _, re := range suspiciousPatterns {
		if re.MatchString(raw) {
			return "", &ValidationError{Field: "destination", Reason: "matches blocked pattern"}
		}
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// subdomainLabels counts host labels left of the registrable domain pair.
func subdomainLabels(host string) int {
	labels := strings.Count(host, ".") + 1
	if labels <= 2 {
		return 0
	}

	return labels - 2
}

// ValidateTitle checks title length limits.
func ValidateTitle(title string) error {
	if len(title) > maxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("longer than %d characters", maxTitleLen)}
	}

	return nil
}

// NormalizeTags trims and validates a tag set.
func NormalizeTags(tags []string) ([]string, error) {
	if len(tags) > maxTags {
		return nil, &ValidationError{Field: "tags", Reason: fmt.Sprintf("more than %d tags", maxTags)}
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		if len(tag) > maxTagLen {
			return nil, &ValidationError{Field: "tags", Reason: fmt.Sprintf("tag longer than %d characters", maxTagLen)}
		}

		if _, dup := seen[tag]; dup {
			continue
		}

		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	return out, nil
}
