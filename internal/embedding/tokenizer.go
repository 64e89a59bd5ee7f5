package embedding

import (
	"strings"
	"unicode"
)

// BERT special token IDs and vocabulary size used by WordTokenizer.
const (
	clsToken  = 101
	sepToken  = 102
	vocabSize = 30000

	defaultMaxTokens = 256
)

// Tokenizer produces the fixed-length model inputs of a BERT-style encoder.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordTokenizer lower-cases text, splits it on whitespace and punctuation, and hashes each
// word into the vocabulary. Output is [CLS] words... [SEP] followed by zero padding.
type WordTokenizer struct{}

// Tokenize returns maxTokens-long inputs. Words beyond maxTokens-2 are dropped.
func (WordTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = defaultMaxTokens
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0], attentionMask[0] = clsToken, 1
	pos := 1
	for _, w := range SplitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		// IDs below sepToken are reserved for special tokens.
		inputIDs[pos] = int64(sepToken + 1 + HashString(w)%(vocabSize-sepToken-1))
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos], attentionMask[pos] = sepToken, 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords lower-cases text and splits it into words. Punctuation separates words and is dropped.
func SplitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 {
		return 0
	}
	return h
}
