package course

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mrlokans/courseimport/internal/storage"
	"github.com/mrlokans/courseimport/internal/utils"
)

const maxGeneratedCodeLength = 20

var (
	// "DISC1 - Fundamentos", "DCA01_Redes"
	explicitSubjectCode = regexp.MustCompile(`^\s*([A-Za-z0-9]{3,})\s*[-_]\s*\S`)
	// "A01-Introducao", "AULA02-Redes"
	lessonCodePattern = regexp.MustCompile(`^([A-Z0-9]+)-(.+)$`)
	// Standalone "test" or "teste" in a diacritic-free, lower-cased title
	testWordPattern = regexp.MustCompile(`\b(test|teste)\b`)
)

// IsTestFile reports whether a file title names a test.
// "Aula TESTE 1" and "Revisão - Teste-Final" match; "Testefinal" and "contestação" do not.
func IsTestFile(title string) bool {
	normalized := strings.ToLower(utils.StripDiacritics(utils.StripExtension(title)))
	return testWordPattern.MatchString(normalized)
}

// NormalizeCode strips diacritics and anything that is not a letter or digit, then upper-cases
func NormalizeCode(s string) string {
	var b strings.Builder
	for _, r := range utils.StripDiacritics(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// NormalizeName is the key used for name lookups: diacritics stripped, lower-cased, spaces collapsed
func NormalizeName(s string) string {
	return strings.ToLower(utils.CollapseSpaces(utils.StripDiacritics(s)))
}

// SubjectCode derives the subject code from the folder name.
// A leading token of at least three letters or digits followed by "-" or "_" is an explicit code;
// otherwise the code is generated from the module and subject names.
func SubjectCode(moduleName, subjectName string) (code string, explicit bool) {
	if m := explicitSubjectCode.FindStringSubmatch(subjectName); m != nil {
		return strings.ToUpper(m[1]), true
	}
	return GeneratedSubjectCode(moduleName, subjectName), false
}

// GeneratedSubjectCode builds the code used when the folder name carries none
func GeneratedSubjectCode(moduleName, subjectName string) string {
	code := NormalizeCode(moduleName + " " + subjectName)
	if len(code) > maxGeneratedCodeLength {
		code = code[:maxGeneratedCodeLength]
	}
	return code
}

// LessonCode splits "CODE-Name" file titles; other titles get "A" plus the 1-based index padded to two digits
func LessonCode(filename string, index int) (code, name string) {
	title := utils.StripExtension(filename)
	if m := lessonCodePattern.FindStringSubmatch(title); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return fmt.Sprintf("A%02d", index+1), title
}

// FullLessonTitle joins a lesson code and name the way lessons are stored
func FullLessonTitle(code, name string) string {
	if code == "" {
		return name
	}
	return code + " - " + name
}

// ModuleName returns the folder name or "Módulo N" for nameless folders
func ModuleName(name string, index int) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fmt.Sprintf("Módulo %d", index+1)
}

// SubjectName returns the folder name or "{module} - Disciplina N" for nameless folders
func SubjectName(moduleName, name string, index int) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fmt.Sprintf("%s - Disciplina %d", moduleName, index+1)
}

// ContentURL is the canonical reference stored for a remote file; it is also the dedup key
func ContentURL(fileID string) string {
	return "https://drive.google.com/file/d/" + fileID + "/view"
}

// IsVideo reports whether a node holds video content
func IsVideo(n storage.Node) bool {
	mime := strings.ToLower(n.MimeType)
	return strings.HasPrefix(mime, "video/") || mime == "application/vnd.google-apps.video"
}

// LessonDescription is the default description for an imported lesson
func LessonDescription(code, name string) string {
	return fmt.Sprintf("Aula %s: %s", code, name)
}

// TestDescription is the default description for an imported test
func TestDescription(name string) string {
	return "Teste: " + name
}

// FilePlaceholder is the content stored for files referenced by URL only
func FilePlaceholder(name string) string {
	return "[Arquivo: " + name + "]"
}
