// internal/rag/formatter.go
package rag

import (
	"fmt"
	"strings"

	"docquery/internal/vectorstore"
)

// FormatContext builds the context block handed to the generator and returns
// the block, its estimated token count, and how many distinct source files
// it covers. Each chunk is labeled with its source filename so the generator
// can cite it.
func FormatContext(matches []vectorstore.Match, maxTokens int) (string, int, int) {
	if len(matches) == 0 {
		return "", 0, 0
	}
	if maxTokens < 0 {
		maxTokens = 0
	}

	var b strings.Builder
	contextTokens := 0
	remaining := maxTokens
	sourceSet := make(map[string]struct{})

	for _, match := range matches {
		text := strings.TrimSpace(match.Metadata.Text)
		if text == "" {
			continue
		}

		if maxTokens > 0 {
			if remaining <= 0 {
				break
			}
			if tokens := estimateTokens(text); tokens > remaining {
				text = truncateToTokens(text, remaining)
			}
		}

		usedTokens := estimateTokens(text)
		if usedTokens == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(fmt.Sprintf("[%s] %s", match.Metadata.Filename, text))
		contextTokens += usedTokens
		if maxTokens > 0 {
			remaining -= usedTokens
		}
		sourceSet[match.Metadata.Filename] = struct{}{}
	}

	return b.String(), contextTokens, len(sourceSet)
}

func estimateTokens(text string) int {
	return len(strings.Fields(text))
}

func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	parts := strings.Fields(text)
	if len(parts) <= maxTokens {
		return text
	}
	return strings.Join(parts[:maxTokens], " ")
}
