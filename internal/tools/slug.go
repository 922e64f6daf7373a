// Package tools holds the small one-shot generators: slugs and QR codes.
package tools

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
)

type SlugOptions struct {
	Separator     string
	Lowercase     bool
	RemoveNumbers bool
}

var (
	quotes   = regexp.MustCompile(`['"]+`)
	nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// Slugify transliterates text to ASCII and joins its alphanumeric runs
// with opts.Separator.
func Slugify(text string, opts SlugOptions) string {
	s := unidecode.Unidecode(text)
	s = quotes.ReplaceAllString(s, "")
	if opts.Lowercase {
		s = strings.ToLower(s)
	}

	words := nonAlnum.Split(s, -1)
	out := words[:0]
	for _, w := range words {
		if opts.RemoveNumbers {
			w = strings.Map(func(r rune) rune {
				if unicode.IsDigit(r) {
					return -1
				}
				return r
			}, w)
		}
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, opts.Separator)
}
