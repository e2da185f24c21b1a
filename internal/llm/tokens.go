package llm

// CharsPerToken is the character-based approximation used for all token
// accounting. Exact tokenizer parity is not required; budgets carry enough
// headroom that a conservative estimate is safe.
const CharsPerToken = 4

// EstimateTokens provides a fast, character-based estimation of token count.
func EstimateTokens(text string) int {
	n := len(text) / CharsPerToken
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
