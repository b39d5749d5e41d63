package decode

import "strings"

const (
	minCandidateLen = 8
	maxCandidateLen = 14
)

// IsCandidate reports whether s looks like a product code: 8 to 14 ASCII
// digits. The check digit is not verified here.
func IsCandidate(s string) bool {
	if len(s) < minCandidateLen || len(s) > maxCandidateLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ChecksumValid verifies the GS1 mod-10 check digit for EAN-8, UPC-A, EAN-13
// and GTIN-14 codes. Other lengths report false.
func ChecksumValid(s string) bool {
	switch len(s) {
	case 8, 12, 13, 14:
	default:
		return false
	}
	if !IsCandidate(s) {
		return false
	}
	sum := 0
	// Weights alternate 3,1 starting from the digit left of the check digit.
	for i, w := len(s)-2, 3; i >= 0; i, w = i-1, 4-w {
		sum += int(s[i]-'0') * w
	}
	check := (10 - sum%10) % 10
	return check == int(s[len(s)-1]-'0')
}

func normalize(s string) string { return strings.TrimSpace(s) }
