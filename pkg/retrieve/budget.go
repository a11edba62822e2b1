package retrieve

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName matches the tokenizer used by current OpenAI chat models.
const encodingName = "o200k_base"

// countTokens reports the token cost of a piece of text. The trimming loop
// takes it as a parameter so tests can supply a counter that does not need
// the encoding files tiktoken downloads on first use.
type countTokens func(string) int

// ClampToTokenBudget trims a context pack to at most budget tokens by
// dropping whole lines from the end. A non-positive budget or a tokenizer
// load failure returns the text unchanged rather than failing retrieval.
func ClampToTokenBudget(text string, budget int) string {
	if budget <= 0 || text == "" {
		return text
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return text
	}
	return clampLines(text, budget, func(s string) int {
		return len(enc.Encode(s, nil, nil))
	})
}

func clampLines(text string, budget int, count countTokens) string {
	if count(text) <= budget {
		return text
	}

	lines := strings.Split(text, "\n")
	total := 0
	kept := 0
	for _, line := range lines {
		// One extra token approximates the rejoining newline.
		cost := count(line) + 1
		if total+cost > budget {
			break
		}
		total += cost
		kept++
	}
	return strings.Join(lines[:kept], "\n")
}
