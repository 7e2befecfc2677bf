// Package naming infers album identity from folder names and track titles
// from file names.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrNameParse is returned when a folder name yields no album.
	ErrNameParse = errors.New("unrecognizable folder name")
	// ErrInvalidTrackName is returned when a file name carries no title.
	ErrInvalidTrackName = errors.New("invalid track file name")
)

// FolderName is the identity parsed from a folder name.
type FolderName struct {
	Album   string
	Artist  string
	Details string
}

type folderRule struct {
	re     *regexp.Regexp
	fields []string
}

// Order matters: the first matching rule is used.
var folderRules = []folderRule{
	{regexp.MustCompile(`^(.+)\(.+\)$`), []string{"album"}},
	// "Artist - 1986 - Album". The year is captured but not kept.
	{regexp.MustCompile(`^([A-z0-9 ]+).*?(\d+).*?([A-z0-9 ]+)$`), []string{"artist", "year", "album"}},
	{regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`), []string{"artist", "album"}},
	{regexp.MustCompile(`^(.+)$`), []string{"album"}},
}

var (
	bracketDetails = regexp.MustCompile(`^(.*?)\s*\[([^\]]*)\]\s*$`)
	parenDetails   = regexp.MustCompile(`^(.*?)\s*\(([^)]*)\)\s*$`)
	yearRun        = regexp.MustCompile(`\d{4}`)

	trackNumberPrefix  = regexp.MustCompile(`^\d+\w*[- ]*`)
	titleWithExtension = regexp.MustCompile(`^(.+)\.[^.]+$`)
)

// ClassifyFolderName applies the ordered folder naming rules to name. It is
// the plain rule set; album folders are identified with the refined
// ParseAlbumFolderName, and this stays available for callers that want the
// first-match rules on their own.
func ClassifyFolderName(name string) (FolderName, error) {
	if strings.TrimSpace(name) == "" {
		return FolderName{}, fmt.Errorf("%w: empty name", ErrNameParse)
	}
	for _, rule := range folderRules {
		m := rule.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		var result FolderName
		for i, field := range rule.fields {
			value := strings.TrimSpace(m[i+1])
			switch field {
			case "album":
				result.Album = value
			case "artist":
				result.Artist = value
			}
		}
		return result, nil
	}
	return FolderName{}, fmt.Errorf("%w: %q", ErrNameParse, name)
}

// ParseAlbumFolderName is the heuristic used for album folders without a cue
// sheet: a trailing [...] or (...) block becomes Details, 4-digit years are
// dropped and the rest is split on "-" into artist and album.
func ParseAlbumFolderName(name string) (FolderName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return FolderName{}, fmt.Errorf("%w: empty name", ErrNameParse)
	}

	var result FolderName
	rest := name
	if m := bracketDetails.FindStringSubmatch(rest); m != nil {
		rest, result.Details = m[1], strings.TrimSpace(m[2])
	} else if m := parenDetails.FindStringSubmatch(rest); m != nil {
		rest, result.Details = m[1], strings.TrimSpace(m[2])
	}

	stripped := strings.TrimSpace(yearRun.ReplaceAllString(rest, ""))

	var parts []string
	for _, part := range strings.Split(stripped, "-") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	switch len(parts) {
	case 0:
		result.Album = strings.TrimSpace(rest)
	case 1:
		result.Album = parts[0]
	case 2:
		result.Artist, result.Album = parts[0], parts[1]
	default:
		result.Album = strings.Join(parts, " - ")
	}

	if result.Album == "" {
		return FolderName{}, fmt.Errorf("%w: %q", ErrNameParse, name)
	}
	return result, nil
}

// ParseTrackTitle strips the track number prefix and the extension from a
// file name, e.g. "03 - Title.flac" becomes "Title".
func ParseTrackTitle(fileName string) (string, error) {
	base := filepath.Base(fileName)
	rest := base
	if loc := trackNumberPrefix.FindStringIndex(rest); loc != nil {
		rest = rest[loc[1]:]
	}

	m := titleWithExtension.FindStringSubmatch(rest)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTrackName, base)
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTrackName, base)
	}
	return title, nil
}
