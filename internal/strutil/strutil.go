package strutil

import "strings"

// CmpFold reports whether two strings are equal under ASCII case-folding.
func CmpFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}

	return true
}

// tokenChars marks the tchar set of RFC 9110: the only characters allowed
// in header field names.
var tokenChars = tokenLUT()

func tokenLUT() (lut [256]bool) {
	for c := '0'; c <= '9'; c++ {
		lut[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		lut[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		lut[c] = true
	}
	for _, c := range "!#$%&'*+-.^_`|~" {
		lut[c] = true
	}

	return lut
}

// IsToken reports whether every byte of s is a valid token character.
func IsToken(s string) bool {
	if len(s) == 0 {
		return false
	}

	for i := 0; i < len(s); i++ {
		if !tokenChars[s[i]] {
			return false
		}
	}

	return true
}

// IsTokenChar reports whether c may appear in a header field name.
func IsTokenChar(c byte) bool {
	return tokenChars[c]
}

// IsFieldValueChar reports whether c may appear in a header field value:
// visible ASCII, space, HTAB or obs-text.
func IsFieldValueChar(c byte) bool {
	return c == '\t' || c >= 0x20 && c != 0x7f
}

func LStripWS(str string) string {
	for i := 0; i < len(str); i++ {
		switch str[i] {
		case ' ', '\t':
		default:
			return str[i:]
		}
	}

	return ""
}

func RStripWS(str string) string {
	for i := len(str); i > 0; i-- {
		switch str[i-1] {
		case ' ', '\t':
		default:
			return str[:i]
		}
	}

	return ""
}

func StripWS(str string) string {
	return RStripWS(LStripWS(str))
}

// CutQualifier strips a ";q=..." style parameter off a token.
func CutQualifier(s string) string {
	q := strings.IndexByte(s, ';')
	if q == -1 {
		return s
	}

	return s[:q]
}
