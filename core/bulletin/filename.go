package bulletin

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/trezcool/masomo/core/grading"
)

const documentExt = ".pdf"

// Filename returns the download name of a student's bulletin for period:
// Bulletin_<LastName>_<FirstName>_<Period_With_Underscores>.pdf
func Filename(student grading.StudentIdentity, period grading.Period) string {
	return fmt.Sprintf("Bulletin_%s_%s_%s%s",
		cleanFilenamePart(student.LastName),
		cleanFilenamePart(student.FirstName),
		cleanFilenamePart(period.Slug()),
		documentExt,
	)
}

// cleanFilenamePart drops path separators and control characters.
func cleanFilenamePart(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// filenameSet hands out filenames that are unique within one run.
// Clashing names (homonyms) get a numeric suffix: Bulletin_X_Y_Trimestre_1_2.pdf
type filenameSet map[string]struct{}

func (s filenameSet) claim(name string) string {
	candidate := name
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		key := strings.ToLower(candidate) // case-insensitive file systems
		if _, taken := s[key]; !taken {
			s[key] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
}
