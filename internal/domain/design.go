package domain

import (
	"net/url"
	"regexp"
	"strings"
)

var designIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// ParseDesignID accepts either a bare design identifier or a design URL such
// as https://www.canva.com/design/DAF123abc/xyz/edit and returns the id.
func ParseDesignID(input string) (string, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return "", &InvalidInputError{Input: input, Reason: "design reference is required"}
	}
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			return "", &InvalidInputError{Input: input, Reason: "malformed design url"}
		}
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		for i := 0; i < len(segments)-1; i++ {
			if segments[i] == "design" && designIDPattern.MatchString(segments[i+1]) {
				return segments[i+1], nil
			}
		}
		return "", &InvalidInputError{Input: input, Reason: "design url does not contain a design id"}
	}
	if !designIDPattern.MatchString(raw) {
		return "", &InvalidInputError{Input: input, Reason: "design id contains unsupported characters"}
	}
	return raw, nil
}
