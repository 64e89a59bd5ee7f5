package embedding

import (
	"fmt"

	"github.com/hyperjump/yomu/pkg/utils"
)

// defaultONNXBatch caps the rows sent to the model in one inference call.
const defaultONNXBatch = 32

// tokenBatch holds the row-major model inputs for a batch of texts, each row maxTokens wide.
type tokenBatch struct {
	rows          int
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
}

func packBatch(tok Tokenizer, texts []string, maxTokens int) tokenBatch {
	b := tokenBatch{
		rows:          len(texts),
		inputIDs:      make([]int64, 0, len(texts)*maxTokens),
		attentionMask: make([]int64, 0, len(texts)*maxTokens),
		tokenTypeIDs:  make([]int64, 0, len(texts)*maxTokens),
	}
	for _, text := range texts {
		ids, mask, types := tok.Tokenize(text, maxTokens)
		b.inputIDs = append(b.inputIDs, ids...)
		b.attentionMask = append(b.attentionMask, mask...)
		b.tokenTypeIDs = append(b.tokenTypeIDs, types...)
	}
	return b
}

// unpackOutput splits a [rows, dimensions] output into L2-normalized vectors.
func unpackOutput(data []float32, rows, dimensions int) ([][]float32, error) {
	if len(data) < rows*dimensions {
		return nil, fmt.Errorf("model output has %d values, want %d x %d", len(data), rows, dimensions)
	}
	out := make([][]float32, rows)
	for i := range out {
		v := make([]float32, dimensions)
		copy(v, data[i*dimensions:(i+1)*dimensions])
		utils.NormalizeL2(v)
		out[i] = v
	}
	return out, nil
}

// batches splits texts into consecutive groups of at most size.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = defaultONNXBatch
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		out = append(out, texts[start:min(start+size, len(texts))])
	}
	return out
}
