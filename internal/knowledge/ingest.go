package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

// maxPassageRunes bounds the size of one stored passage.
const maxPassageRunes = 1600

// CollectFiles walks root and returns the relative paths matching any include
// glob and no exclude glob. Globs use doublestar syntax ("docs/**/*.md").
func CollectFiles(root string, include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		include = []string{"**/*.md", "**/*.txt"}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		for _, pattern := range exclude {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return nil
			}
		}
		for _, pattern := range include {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				files = append(files, rel)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// SplitDocument splits a text document into passages for the given persona.
// Markdown-style headings open a new passage and become its section label;
// oversized sections are split on paragraph boundaries.
func SplitDocument(personaID, sourceID, content string) []Passage {
	var passages []Passage
	section := ""
	var buf strings.Builder

	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		for _, part := range splitLong(text) {
			passages = append(passages, Passage{
				ID:        uuid.New().String(),
				SourceID:  sourceID,
				Text:      part,
				Section:   section,
				PersonaID: personaID,
			})
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if heading, ok := parseHeading(line); ok {
			flush()
			section = heading
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()

	return passages
}

func parseHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
	if heading == "" {
		return "", false
	}
	return heading, true
}

// splitLong breaks text into pieces of at most maxPassageRunes, preferring
// paragraph boundaries.
func splitLong(text string) []string {
	if len([]rune(text)) <= maxPassageRunes {
		return []string{text}
	}

	var parts []string
	var buf strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		if buf.Len() > 0 && len([]rune(buf.String()))+len([]rune(para)) > maxPassageRunes {
			parts = append(parts, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
		buf.WriteString(para)
		buf.WriteString("\n\n")
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		parts = append(parts, s)
	}
	return parts
}
