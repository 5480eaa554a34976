// Package extract pulls structured identity fields out of free-text bank
// transaction descriptions. The descriptions are not a grammar; every rule
// here is a best-effort heuristic and malformed input degrades to empty
// fields, never an error.
package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Lead-in phrases that precede a sender name in statement descriptions,
// checked in order against the case-folded text.
var senderPhrases = []string{
	"raast p2p fund transfer from ",
	"money received from ",
	"fund transfer from ",
	"received from ",
}

var (
	phonePattern     = regexp.MustCompile(`\b92\d{10}\b`)
	referencePattern = regexp.MustCompile(`(?i)STAN\s*\(?\s*(\d+)\s*\)?`)
)

// Fields holds whatever could be recovered from one description. Absent
// fields are empty strings.
type Fields struct {
	SenderName string
	Phone      string
	Reference  string
}

// FromDescription runs all extraction rules against a description.
func FromDescription(description string) Fields {
	return Fields{
		SenderName: SenderName(description),
		Phone:      Phone(description),
		Reference:  Reference(description),
	}
}

// SenderName extracts the sender name following a known lead-in phrase.
// Extraction runs over the case-folded text, so the result is lower-case.
// Name collection stops at the first token that looks like an account or bank
// code: all upper-case, all digits, longer than 15 characters, or letters
// mixed with digits.
func SenderName(description string) string {
	lowered := strings.ToLower(description)
	for _, phrase := range senderPhrases {
		idx := strings.Index(lowered, phrase)
		if idx < 0 {
			continue
		}
		var parts []string
		for _, word := range strings.Fields(lowered[idx+len(phrase):]) {
			if isCodeToken(word) {
				break
			}
			parts = append(parts, word)
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// Phone returns the first 12-digit token with the 92 country-code prefix.
func Phone(description string) string {
	return phonePattern.FindString(description)
}

// Reference returns the first digit run following the STAN marker, optionally
// wrapped in parentheses.
func Reference(description string) string {
	m := referencePattern.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[1]
}

func isCodeToken(word string) bool {
	if len(word) > 15 {
		return true
	}
	allDigits := word != ""
	hasUpper, hasLower := false, false
	hasLetter, hasDigit := false, false
	for _, r := range word {
		if !unicode.IsDigit(r) {
			allDigits = false
		} else {
			hasDigit = true
		}
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsUpper(r) {
				hasUpper = true
			} else if unicode.IsLower(r) {
				hasLower = true
			}
		}
	}
	if allDigits {
		return true
	}
	if hasUpper && !hasLower {
		return true
	}
	return hasLetter && hasDigit
}
