package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

var (
	// Unified national numbering: NNNNNNN-DD.AAAA.J.TR.OOOO
	caseNumberPattern = regexp.MustCompile(`\b\d{7}-\d{2}\.\d{4}\.\d\.\d{2}\.\d{4}\b`)
	bareCaseNumber    = regexp.MustCompile(`\b\d{20}\b`)
)

// ExtractCaseNumber finds the first case number following the unified
// national pattern in s, formatting bare 20-digit numbers.
func ExtractCaseNumber(s string) string {
	if m := caseNumberPattern.FindString(s); m != "" {
		return m
	}
	if m := bareCaseNumber.FindString(s); m != "" {
		return FormatCaseNumber(m)
	}
	return ""
}

// FormatCaseNumber formats a 20-digit case number; other input is returned trimmed
func FormatCaseNumber(s string) string {
	s = strings.TrimSpace(s)
	if len(s) != 20 || strings.Trim(s, "0123456789") != "" {
		return s
	}
	return s[0:7] + "-" + s[7:9] + "." + s[9:13] + "." + s[13:14] + "." + s[14:16] + "." + s[16:20]
}

// NormalizeURL returns a canonical absolute http(s) URL, or "" when s is not one
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}

	normalized, err := purell.NormalizeURLString(s, purell.FlagsSafe|purell.FlagRemoveDotSegments|purell.FlagRemoveFragment)
	if err != nil {
		return ""
	}
	return normalized
}
