package output

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/tanq16/rangepull/internal/rangeutil"
)

// PrintProgressBar renders a bracketed progress bar string for current/total.
func PrintProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(fmt.Sprintf("%s %.1f%% %s ", bar, percent*100, StyleSymbols["bullet"]))
}

// ProgressLine renders one line combining a progress bar, a label, and speed.
func ProgressLine(downloaded, total int64, speedBps float64, label string) string {
	bar := PrintProgressBar(downloaded, total, 30)
	speed := rangeutil.FormatBytes(uint64(speedBps))
	speed = speed[:len(speed)-1] + "B/s"
	return fmt.Sprintf("%s%s %s %s", bar, debugStyle.Render(label), StyleSymbols["bullet"], debugStyle.Render(speed))
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func wrapText(text string, indent int) []string {
	termWidth := getTerminalWidth()
	maxWidth := termWidth - indent - 2
	if maxWidth <= 10 {
		maxWidth = 80
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	var lines []string
	currentLine := ""
	currentWidth := 0
	for _, r := range text {
		if currentWidth+1 > maxWidth {
			lines = append(lines, currentLine)
			currentLine = string(r)
			currentWidth = 1
		} else {
			currentLine += string(r)
			currentWidth++
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}
	return lines
}
