package main

import (
	"fmt"
	"os"

	"github.com/data4good/owl/internal/similarity"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

const previewChars = 500

// renderDocument prints one retrieved document the way the answer view
// lists its sources: title, provenance, and a bounded content preview.
func renderDocument(i int, d similarity.Document) {
	fmt.Fprintf(os.Stdout, "%s\n", colorize(colorBold, fmt.Sprintf("Document %d: %s", i, d.Title)))
	fmt.Fprintf(os.Stdout, "  Source: %s (page %s)\n", d.Source, d.PageLabel)
	if d.URL != "" {
		fmt.Fprintf(os.Stdout, "  URL: %s\n", d.URL)
	}

	preview := d.Body
	runes := []rune(preview)
	if len(runes) > previewChars {
		preview = string(runes[:previewChars]) + "..."
	}
	fmt.Fprintf(os.Stdout, "  %s\n\n", preview)
}
