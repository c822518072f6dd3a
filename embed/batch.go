package embed

import "github.com/creastat/vecstore"

// splitBatches groups texts into consecutive [start, end) ranges holding at
// most maxItems texts and at most maxTokens estimated tokens. A single text
// over the token budget gets a range of its own.
func splitBatches(texts []string, maxItems, maxTokens int) [][2]int {
	var ranges [][2]int
	start, tokens := 0, 0
	for i, t := range texts {
		n := vecstore.EstimateTokens(t)
		full := i-start >= maxItems || (maxTokens > 0 && tokens+n > maxTokens)
		if i > start && full {
			ranges = append(ranges, [2]int{start, i})
			start, tokens = i, 0
		}
		tokens += n
	}
	if start < len(texts) {
		ranges = append(ranges, [2]int{start, len(texts)})
	}
	return ranges
}
