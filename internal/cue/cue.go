// Package cue reads cue sheets and splits cue-backed rips into one file per track.
package cue

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mptreasury/pkg/utils"
)

var (
	// ErrCueFormat is returned when a folder doesn't hold exactly one readable cue sheet.
	ErrCueFormat = errors.New("invalid cue sheet")
	// ErrCueSplit is returned when the splitter fails or its output can't be located.
	ErrCueSplit = errors.New("cue split failed")
)

// Metadata is the album identity read from a cue sheet.
type Metadata struct {
	Album   string
	Artist  string
	Details string
}

const utf8BOM = "\ufeff"

// IsCueBacked reports whether dir holds exactly one cue sheet and at least one audio file.
func IsCueBacked(dir string) (bool, error) {
	cues, err := findCueSheets(dir)
	if err != nil {
		return false, err
	}
	if len(cues) != 1 {
		return false, nil
	}
	audio, err := utils.ListAudioFiles(dir)
	if err != nil {
		return false, err
	}
	return len(audio) > 0, nil
}

// ParseMetadata extracts the first TITLE, PERFORMER and REM COMMENT lines of
// the cue sheet in dir. Undecodable bytes are dropped.
func ParseMetadata(dir string) (Metadata, error) {
	path, err := singleCueSheet(dir)
	if err != nil {
		return Metadata{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: failed to read %s: %v", ErrCueFormat, path, err)
	}
	data = bytes.ToValidUTF8(data, nil)

	var meta Metadata
	var haveTitle, havePerformer, haveComment bool

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), utf8BOM))

		switch {
		case !haveTitle && strings.HasPrefix(line, "TITLE "):
			meta.Album = cueValue(line, "TITLE ")
			haveTitle = true
		case !havePerformer && strings.HasPrefix(line, "PERFORMER "):
			meta.Artist = cueValue(line, "PERFORMER ")
			havePerformer = true
		case !haveComment && strings.HasPrefix(line, "REM COMMENT "):
			meta.Details = cueValue(line, "REM COMMENT ")
			haveComment = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Metadata{}, fmt.Errorf("%w: failed to scan %s: %v", ErrCueFormat, path, err)
	}

	return meta, nil
}

func cueValue(line, keyword string) string {
	value := strings.TrimSpace(strings.TrimPrefix(line, keyword))
	return strings.TrimSpace(strings.Trim(value, `"`))
}

func singleCueSheet(dir string) (string, error) {
	cues, err := findCueSheets(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCueFormat, err)
	}
	if len(cues) != 1 {
		return "", fmt.Errorf("%w: expected one cue sheet in %s, found %d", ErrCueFormat, dir, len(cues))
	}
	return cues[0], nil
}

func findCueSheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var cues []string
	for _, entry := range entries {
		if !entry.IsDir() && utils.IsCueSheet(entry.Name()) {
			cues = append(cues, filepath.Join(dir, entry.Name()))
		}
	}
	return cues, nil
}
