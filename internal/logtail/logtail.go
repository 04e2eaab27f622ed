package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Level is the severity a log line is shown with.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Line is one classified log line.
type Line struct {
	Text  string
	Level Level
}

var (
	errorMarkers = []string{"giving up", "error", "failed to", "panic"}
	warnMarkers  = []string{"retrying", "rate limited", "cancel"}
)

// LevelOf classifies a line of snoo's log by the phrases the fetch scheduler
// and app write.
func LevelOf(line string) Level {
	lower := strings.ToLower(line)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return LevelError
		}
	}
	for _, marker := range warnMarkers {
		if strings.Contains(lower, marker) {
			return LevelWarn
		}
	}
	return LevelInfo
}

// Tail returns the last maxLines lines of path, classified.
func Tail(path string, maxLines int) ([]Line, error) {
	raw, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(raw))
	for _, text := range raw {
		lines = append(lines, Line{Text: text, Level: LevelOf(text)})
	}
	return lines, nil
}

// Read returns at most maxLines from the end of the file at path. A missing
// file reads as empty because nothing has been logged yet.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count, next := 0, 0
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	if count < maxLines {
		return append([]string(nil), ring[:count]...), nil
	}
	lines := make([]string, 0, count)
	lines = append(lines, ring[next:]...)
	lines = append(lines, ring[:next]...)
	return lines, nil
}
