package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/yomu/internal/models"
)

// extractPlain returns content as string, validating it is valid UTF-8.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(_ context.Context, _ *Extractor, content []byte) (string, models.ExtractMetadata, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd"), models.ExtractMetadata{}, nil
	}
	return string(content), models.ExtractMetadata{}, nil
}
