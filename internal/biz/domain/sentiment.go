package domain

// Sentiment labels produced by the sentiment classifier.
const (
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
	SentimentPositive = "Positive"
)

// SentimentLabels lists the sentiment labels in display order.
var SentimentLabels = []string{SentimentPositive, SentimentNeutral, SentimentNegative}

// Classified pairs a message with the classifier verdict. Created once per
// message, never mutated afterwards.
type Classified struct {
	Message    Message
	Label      string
	Confidence float64 // 0..1
}

// Summary is the aggregate over one analyze run. It is recomputed wholesale
// from a batch, never patched incrementally.
type Summary struct {
	Total         int
	Counts        map[string]int
	Percentages   map[string]float64
	AvgConfidence float64 // percent
}

// Summarize folds a batch of classified messages into a Summary. ok is false
// for an empty batch; callers must report "no messages" instead of rendering
// a zero-filled summary.
func Summarize(batch []Classified) (Summary, bool) {
	if len(batch) == 0 {
		return Summary{}, false
	}

	counts := make(map[string]int, len(SentimentLabels))
	confidenceSum := 0.0
	for _, c := range batch {
		counts[c.Label]++
		confidenceSum += c.Confidence
	}

	total := len(batch)
	percentages := make(map[string]float64, len(counts))
	for label, n := range counts {
		percentages[label] = float64(n) / float64(total) * 100
	}

	return Summary{
		Total:         total,
		Counts:        counts,
		Percentages:   percentages,
		AvgConfidence: confidenceSum / float64(total) * 100,
	}, true
}
