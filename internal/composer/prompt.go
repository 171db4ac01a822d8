package composer

import (
	"fmt"
	"strings"

	"github.com/data4good/owl/internal/similarity"
)

// TruncationNotice is appended when assembled context exceeds the
// character budget. It is additive: the notice itself never counts
// against the budget and is never cut.
const TruncationNotice = "\n\n[...context truncated to fit the configured limit]"

// DefaultSystemPrompt is the fixed instruction prepended to every prompt.
const DefaultSystemPrompt = "You are a Q&A assistant dedicated to providing accurate, up-to-date information " +
	"from ReliefWeb, a humanitarian platform managed by OCHA. Use the provided context documents " +
	"to answer the user's question. If you cannot find the answer or are not sure, say that you do not know. " +
	"Keep your answer to ten sentences maximum, be clear and concise. Always end by inviting the user to ask more!"

const docSeparator = "\n\n"

// Assemble joins each document's best available text in list order,
// separated by blank lines, and truncates the result to limitChars
// characters (runes), appending TruncationNotice when cut. A pure
// function: an empty document list yields an empty string, and
// limitChars <= 0 disables truncation.
func Assemble(docs []similarity.Document, limitChars int) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.ContextText()
	}
	joined := strings.Join(parts, docSeparator)

	if limitChars <= 0 {
		return joined
	}

	runes := []rune(joined)
	if len(runes) <= limitChars {
		return joined
	}
	return string(runes[:limitChars]) + TruncationNotice
}

// BuildPrompt produces the single-use prompt string in its fixed
// three-part layout: instruction, labeled context block, labeled
// question block.
func BuildPrompt(systemPrompt, context, query string) string {
	return fmt.Sprintf("%s\n\n### Context:\n%s\n\n### User question:\n%s", systemPrompt, context, query)
}
