// Package naming generates collision-resistant tokens and filesystem-safe
// file names.
package naming

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
	"github.com/jaevor/go-nanoid"
)

const tokenLength = 21

var generate = func() func() string {
	gen, err := nanoid.Standard(tokenLength)
	if err != nil {
		panic(err)
	}
	return gen
}()

// Token returns a random URL-safe token.
func Token() string {
	return generate()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SafeFilename reduces name to ASCII letters, digits, '.', '_' and '-'.
// Directory parts are dropped. An empty result becomes fallback.
func SafeFilename(name, fallback string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = unidecode.Unidecode(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return fallback
	}
	return name
}

// MaxNameLength is the longest file name most filesystems accept.
const MaxNameLength = 255

// maxExtLength bounds what Truncate treats as an extension.
const maxExtLength = 16

// Prefixed joins a fresh token and name as "<token>_<name>", shortening
// name so the result fits MaxNameLength.
func Prefixed(name string) string {
	return Token() + "_" + Truncate(name, MaxNameLength-tokenLength-1)
}

// Truncate shortens name to at most limit bytes, keeping its extension.
// name is expected to be ASCII, as SafeFilename returns.
func Truncate(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > maxExtLength || len(ext) >= limit {
		ext = ""
	}
	return name[:limit-len(ext)] + ext
}
