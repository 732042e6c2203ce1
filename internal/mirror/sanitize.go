package mirror

import "regexp"

var (
	// reservedChars are characters that are invalid or awkward in file
	// names on at least one common filesystem.
	reservedChars = regexp.MustCompile(`[/\\?%*:|"<>]`)

	// whitespaceRun matches runs of ASCII and Unicode whitespace.
	whitespaceRun = regexp.MustCompile(`[\t\n\v\f\r \p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
)

// SanitizeFilename maps a page title to a directory name. Each of
// / \ ? % * : | " < > becomes "_", then every whitespace run collapses to
// a single "_".
//
// SanitizeFilename is idempotent. It is not injective: "a/b" and "a?b"
// both map to "a_b".
func SanitizeFilename(name string) string {
	name = reservedChars.ReplaceAllString(name, "_")
	return whitespaceRun.ReplaceAllString(name, "_")
}

// dirName is SanitizeFilename with names that do not denote a child
// directory mapped to "_".
func dirName(title string) string {
	switch safe := SanitizeFilename(title); safe {
	case "", ".", "..":
		return "_"
	default:
		return safe
	}
}
