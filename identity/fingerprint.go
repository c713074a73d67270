package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint identifies a listing across runs. The link path is the
// strongest signal when present; titles re-list with small edits, so the
// normalized title plus site acts as the fallback.
func Fingerprint(siteID, title, link string) string {
	input := fmt.Sprintf("%s|%s|%s", siteID, NormalizeTitle(title), linkPath(link))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeTitle lowercases, strips punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	title = nonAlnumRegex.ReplaceAllString(title, " ")
	title = multiSpaceRegex.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// linkPath strips scheme, host and query so tracking params don't split
// one listing into many.
func linkPath(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	return strings.TrimSuffix(u.Path, "/")
}
