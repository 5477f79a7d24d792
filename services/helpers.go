package services

import (
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const dateLayout = "2006-01-02"

var textPolicy = bluemonday.StrictPolicy()

func newID() string {
	return uuid.NewString()
}

const maxSanitizePasses = 4

// cleanText strips markup from user supplied text and returns plain text.
// Entities are decoded before each pass, so encoded tags are stripped too.
// The result is decoded only once a pass removes nothing.
func cleanText(s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		plain := unescapeAll(s)
		sanitized := textPolicy.Sanitize(plain)
		if html.UnescapeString(sanitized) == plain {
			return strings.TrimSpace(plain)
		}
		s = sanitized
	}
	// Still nested after every pass: keep the escaped form
	return strings.TrimSpace(textPolicy.Sanitize(unescapeAll(s)))
}

func unescapeAll(s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// normalizeDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// date part. Empty input stays empty.
func normalizeDate(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(dateLayout), nil
	}
	return "", invalid("invalid date for %s: %q", field, s)
}

func validLinks(links []string) ([]string, error) {
	out := make([]string, 0, len(links))
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		u, err := url.ParseRequestURI(l)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, invalid("invalid link: %q", l)
		}
		out = append(out, l)
	}
	return out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func avatarURL(first, last string) string {
	name := strings.TrimSpace(first + " " + last)
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}
