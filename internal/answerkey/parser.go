// Package answerkey extracts answer keys (question number to correct answer) from the plain text
// of test documents.
//
// Documents are written by hand, so the parser is layered:
//
//  1. a "GABARITO" section, when the document has one, is parsed on its own up to a blank-line pair;
//  2. otherwise every line mentioning an answer keyword is considered;
//  3. each candidate line is matched as "Questão N - rest" or "N) rest", labels such as
//     "Resposta:" are dropped, and the first alternative that reads as an answer is kept;
//  4. justifications are taken from the same line or back-filled from "Justificativa N:" blocks.
//
// Parse is pure and never fails; unrecognised text yields an empty key.
package answerkey

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/mrlokans/courseimport/internal/utils"
)

const (
	// DefaultPoints is the weight given to every parsed question
	DefaultPoints = 10
	// MaxQuestionNumber bounds accepted question numbers
	MaxQuestionNumber = 200
)

// Entry is one question of an answer key
type Entry struct {
	QuestionNumber int    `json:"question_number" yaml:"question_number"`
	CorrectAnswer  string `json:"correct_answer" yaml:"correct_answer"`
	Points         int    `json:"points" yaml:"points"`
	Justification  string `json:"justification,omitempty" yaml:"justification,omitempty"`
}

var (
	sectionHeader     = regexp.MustCompile(`^(?:[a-z ]*\s)?gabarito(?:\s+[a-z ]+)?\s*:?$`)
	questionLine      = regexp.MustCompile(`(?i)^(?:quest(?:ã|a)o|pergunta)\s*(\d{1,4})\s*[-–—.:)]*\s*(.*)$`)
	numberedLine      = regexp.MustCompile(`^(\d{1,4})\s*(?:[-–—.:)]+|\s)\s*(.*)$`)
	answerLabel       = regexp.MustCompile(`(?i)\b(?:gabarito|resposta|alternativa\s+correta|alternativa|letra|item|resp)\b\.?\s*[:=\-–]?\s*`)
	leadingLabel      = regexp.MustCompile(`(?i)^(?:gabarito|resposta|alternativa\s+correta|alternativa|letra|item|resp)\b\.?\s*[:=\-–]?\s*`)
	inlineJustify     = regexp.MustCompile(`(?i)\bjustificativa\b\s*[:\-–]?\s*`)
	justificationHead = regexp.MustCompile(`(?i)^justificativa\s*(\d{1,4})?\s*[.:\-–]\s*(.*)$`)
	answerSeparators  = regexp.MustCompile(`(?i)\s*(?:\\|/|;|,|\||\bou\b)\s*`)
	startsNumbered    = regexp.MustCompile(`^\d+[.)]`)
)

var keywords = []string{"gabarito", "resposta", "alternativa", "letra", "item", "resp"}

// Parse extracts the answer key from document text.
// Entries are unique by question number (first occurrence wins) and sorted ascending.
func Parse(text string) []Entry {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var entries []Entry
	if section, ok := findSection(lines); ok {
		entries = parseLines(section, false)
	}
	if len(entries) == 0 {
		entries = parseLines(lines, true)
	}
	if len(entries) == 0 {
		return []Entry{}
	}

	backfillJustifications(entries, extractJustifications(lines))

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].QuestionNumber < entries[j].QuestionNumber
	})
	return entries
}

// NormalizeAnswer maps an answer token to A-E, V or F. ok is false when the token is not an answer.
func NormalizeAnswer(token string) (answer string, ok bool) {
	t := strings.ToLower(utils.StripDiacritics(strings.TrimSpace(token)))
	t = strings.Trim(t, "()[].:*\"' ")

	switch t {
	case "a", "b", "c", "d", "e":
		return strings.ToUpper(t), true
	case "v", "verdadeiro", "verdadeira", "true":
		return "V", true
	case "f", "falso", "falsa", "false":
		return "F", true
	}
	return "", false
}

// findSection returns the non-blank lines following a GABARITO header, up to two consecutive
// blank lines or the next all-caps heading
func findSection(lines []string) ([]string, bool) {
	for i, line := range lines {
		header := strings.ToLower(utils.StripDiacritics(strings.TrimSpace(line)))
		if !sectionHeader.MatchString(header) {
			continue
		}

		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}

		var section []string
		blanks := 0
		for ; j < len(lines); j++ {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" {
				if blanks++; blanks == 2 {
					break
				}
				continue
			}
			if isHeading(trimmed) {
				break
			}
			blanks = 0
			section = append(section, trimmed)
		}
		return section, true
	}
	return nil, false
}

func parseLines(lines []string, requireKeyword bool) []Entry {
	var entries []Entry
	seen := make(map[int]bool)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if requireKeyword && !hasKeyword(line) {
			continue
		}

		entry, ok := parseLine(line)
		if !ok || seen[entry.QuestionNumber] {
			continue
		}
		seen[entry.QuestionNumber] = true
		entries = append(entries, entry)
	}
	return entries
}

func parseLine(line string) (Entry, bool) {
	m := questionLine.FindStringSubmatch(line)
	if m == nil {
		m = numberedLine.FindStringSubmatch(line)
	}
	if m == nil {
		return Entry{}, false
	}

	number, err := strconv.Atoi(m[1])
	if err != nil || number < 1 || number > MaxQuestionNumber {
		return Entry{}, false
	}

	rest := m[2]
	justification := ""
	if loc := inlineJustify.FindStringIndex(rest); loc != nil {
		justification = strings.TrimSpace(rest[loc[1]:])
		rest = rest[:loc[0]]
	}

	// Text after the label is preferred; the whole rest covers labels that follow the answer.
	candidates := []string{rest}
	if loc := answerLabel.FindStringIndex(rest); loc != nil {
		candidates = []string{stripLabels(rest[loc[1]:]), rest}
	}

	answer, ok := "", false
	for _, c := range candidates {
		if answer, ok = firstAnswer(c); ok {
			break
		}
	}
	if !ok {
		return Entry{}, false
	}

	return Entry{
		QuestionNumber: number,
		CorrectAnswer:  answer,
		Points:         DefaultPoints,
		Justification:  justification,
	}, true
}

func stripLabels(s string) string {
	for {
		stripped := leadingLabel.ReplaceAllString(s, "")
		if stripped == s {
			return s
		}
		s = stripped
	}
}

// firstAnswer splits rest on the alternative separators and returns the first valid answer.
// A token that is not an answer as a whole is retried with its first word ("Falso, pois ...").
func firstAnswer(rest string) (string, bool) {
	for _, token := range answerSeparators.Split(rest, -1) {
		if answer, ok := NormalizeAnswer(token); ok {
			return answer, true
		}
		fields := strings.FieldsFunc(token, func(r rune) bool {
			return unicode.IsSpace(r) || r == '-' || r == ')' || r == '.'
		})
		if len(fields) > 0 {
			if answer, ok := NormalizeAnswer(fields[0]); ok {
				return answer, true
			}
		}
	}
	return "", false
}

type justification struct {
	questionNumber int
	text           string
}

// extractJustifications collects "Justificativa N: text" blocks.
// Unnumbered blocks take their position among all blocks as the question number.
func extractJustifications(lines []string) []justification {
	var result []justification
	var current *justification
	var buf []string

	flush := func() {
		if current == nil {
			return
		}
		current.text = strings.TrimSpace(strings.Join(buf, " "))
		if current.text != "" {
			result = append(result, *current)
		}
		current = nil
		buf = nil
	}

	position := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if m := justificationHead.FindStringSubmatch(trimmed); m != nil {
			flush()
			position++
			number := position
			if m[1] != "" {
				if n, err := strconv.Atoi(m[1]); err == nil {
					number = n
				}
			}
			current = &justification{questionNumber: number}
			buf = append(buf, m[2])
			continue
		}

		if current == nil {
			continue
		}
		if trimmed == "" || startsNumbered.MatchString(trimmed) || isHeading(trimmed) {
			flush()
			continue
		}
		buf = append(buf, trimmed)
	}
	flush()

	return result
}

func backfillJustifications(entries []Entry, found []justification) {
	for i := range entries {
		if entries[i].Justification != "" {
			continue
		}
		for _, j := range found {
			if j.questionNumber == entries[i].QuestionNumber {
				entries[i].Justification = j.text
				break
			}
		}
	}
}

func hasKeyword(line string) bool {
	lower := strings.ToLower(utils.StripDiacritics(line))
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// isHeading matches all-caps lines such as "JUSTIFICATIVAS" or "QUESTÕES:"
func isHeading(line string) bool {
	line = strings.TrimSuffix(line, ":")
	letters := 0
	for _, r := range line {
		switch {
		case unicode.IsLetter(r):
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return letters >= 2
}
