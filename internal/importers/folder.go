package importers

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidFolder is returned when no folder ID can be read from the input
var ErrInvalidFolder = errors.New("invalid drive folder URL or ID")

var (
	folderURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`),
	}
	rawFolderID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ExtractFolderID reads the folder ID from a share link ("/drive/folders/{id}", "open?id={id}",
// "/d/{id}") or returns the input when it already is a bare ID
func ExtractFolderID(input string) (string, error) {
	input = strings.TrimSpace(input)
	for _, p := range folderURLPatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
	}
	if rawFolderID.MatchString(input) {
		return input, nil
	}
	return "", ErrInvalidFolder
}
