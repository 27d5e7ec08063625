package buildah

import (
	"regexp"
	"strings"
)

var notFoundRegex = regexp.MustCompile(`(?i)image not known|not found|no such image|manifest unknown|does not exist`)

// chompBytesToString remove new line from informed bytes payload, returning as string.
func chompBytesToString(in []byte) string {
	return strings.TrimRight(string(in), "\n")
}

// isNotFound reports whether err was raised for a missing image.
func isNotFound(err error) bool {
	return err != nil && notFoundRegex.MatchString(err.Error())
}
