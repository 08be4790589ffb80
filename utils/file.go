package utils

import (
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func replaceNonASCII(r rune) rune {
	if r > unicode.MaxASCII {
		return '?'
	}
	return r
}

// ToASCII returns s restricted to 7-bit ASCII. Accented letters lose their marks, anything else
// outside of ASCII becomes a question mark.
func ToASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Map(replaceNonASCII))
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.Map(replaceNonASCII, s)
	}
	return out
}

// SaveLinesToFile writes lines to path, one per line. When ascii is set the content is
// restricted to 7-bit ASCII, otherwise it is written as UTF-8.
func SaveLinesToFile(path string, lines []string, ascii bool) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create program file %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	content := b.String()
	if ascii {
		content = ToASCII(content)
	}
	if _, err := f.WriteString(content); err != nil {
		return errors.Wrapf(err, "could not write program file %q", path)
	}
	return f.Sync()
}
