package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiBlue   = "\x1b[34m"
)

var titleCaser = cases.Title(language.Und)

// displayStatus turns a snake_case status value into a human heading.
func displayStatus(value string) string {
	return titleCaser.String(strings.ReplaceAll(strings.TrimSpace(value), "_", " "))
}

func colorForStatus(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "completed", "ready", "passed":
		return ansiGreen
	case "failed", "error":
		return ansiRed
	case "has_warnings", "warning", "in_progress", "pending", "processing":
		return ansiYellow
	default:
		return ""
	}
}

func colorizeStatus(value string, colorize bool) string {
	display := displayStatus(value)
	if !colorize {
		return display
	}
	color := colorForStatus(value)
	if color == "" {
		return display
	}
	return color + display + ansiReset
}

func renderSectionHeader(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
