package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const barCells = 10

// FormatSummary renders the aggregate as a monospaced block: one line per
// sentiment label with a right-aligned count, a 10-cell proportion bar and
// the percentage, followed by total and average confidence. Counts are
// padded to the widest count so the bars line up in the chat client.
func FormatSummary(s Summary, windowLabel string) string {
	countWidth := 1
	for _, label := range SentimentLabels {
		if w := len(strconv.Itoa(s.Counts[label])); w > countWidth {
			countWidth = w
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sentiment Analysis Summary (Last %s)\n", windowLabel)
	for _, label := range SentimentLabels {
		count := s.Counts[label]
		pct := s.Percentages[label]
		fmt.Fprintf(&b, "%-8s %*d %-8s %s %5.1f%%\n",
			label, countWidth, count, plural(count, "message"), proportionBar(pct), pct)
	}
	fmt.Fprintf(&b, "Total: %d\n", s.Total)
	fmt.Fprintf(&b, "Avg confidence: %.2f%%\n", s.AvgConfidence)
	return b.String()
}

// proportionBar renders a fixed-width bar with round(10 * pct/100) filled cells.
func proportionBar(pct float64) string {
	filled := int(math.Round(barCells * pct / 100))
	if filled < 0 {
		filled = 0
	}
	if filled > barCells {
		filled = barCells
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barCells-filled) + "]"
}
