package export

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stem strips the last extension from an uploaded filename.
func Stem(filename string) string {
	stem := filename
	if i := strings.LastIndex(filename, "."); i >= 0 {
		stem = filename[:i]
	}
	if strings.TrimSpace(stem) == "" {
		return "document"
	}
	return stem
}

func WorkbookName(upload string) string { return Stem(upload) + "_extracted.xlsx" }
func ArchiveName(upload string) string  { return Stem(upload) + "_images.zip" }
func ReportName(upload string) string   { return Stem(upload) + "_report.docx" }

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ASCIIName folds accents away and replaces anything else outside a
// conservative filename alphabet with underscores.
func ASCIIName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = unsafeNameChars.ReplaceAllString(folded, "_")
	folded = strings.Trim(folded, "_")
	if folded == "" || strings.HasPrefix(folded, ".") {
		folded = "download" + folded
	}
	return folded
}

// ContentDisposition builds an attachment header with an ASCII fallback
// and the UTF-8 original.
func ContentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ASCIIName(name), extValue(name))
}

const hexDigits = "0123456789ABCDEF"

// extValue percent-encodes every byte outside the RFC 5987 attr-char set.
func extValue(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	return sb.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
