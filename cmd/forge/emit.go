package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	forge "github.com/zero-day-ai/exercise-forge"
	"github.com/zero-day-ai/exercise-forge/loop"
	"github.com/zero-day-ai/exercise-forge/packet"
)

// LessonFile receives the lesson sections.
const LessonFile = "LESSON.md"

// Fallback file names for code sections that carry no filePath.
var fallbackFiles = map[loop.Kind]string{
	loop.Starter: "starter.txt",
	loop.Test:    "tests.txt",
}

// emitExercise writes the expanded sections under dir. Code sections sharing
// a filePath are concatenated in order. It returns the relative paths written.
func emitExercise(dir string, ex *forge.Exercise) ([]string, error) {
	files := map[string]*strings.Builder{}
	var order []string
	add := func(name, content string) {
		b, ok := files[name]
		if !ok {
			b = &strings.Builder{}
			files[name] = b
			order = append(order, name)
		}
		b.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			b.WriteByte('\n')
		}
	}

	for _, out := range []loop.Outcome{ex.Starter, ex.Tests} {
		for _, s := range out.Sections {
			name, err := sectionPath(out.Kind, s)
			if err != nil {
				return nil, err
			}
			add(name, s.Content)
		}
	}
	for _, s := range ex.Lesson.Sections {
		if s.SectionTitle != "" {
			add(LessonFile, "## "+s.SectionTitle+"\n\n")
		}
		add(LessonFile, s.Content+"\n")
	}

	for _, name := range order {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(files[name].String()), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return order, nil
}

func sectionPath(kind loop.Kind, s packet.Section) (string, error) {
	if s.FilePath == "" {
		return fallbackFiles[kind], nil
	}
	name := filepath.Clean(filepath.FromSlash(s.FilePath))
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%s section path %q escapes the output directory", kind, s.FilePath)
	}
	return name, nil
}
