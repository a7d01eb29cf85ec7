// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package chat

import (
	"fmt"
	"strings"

	"github.com/northbound/kbengine/internal/retrieval"
)

const basePreamble = `You are a knowledgeable assistant answering questions about the documents in this project. Answer clearly and concisely, and ground your answer in the supplied context where possible.`

const noContextPreamble = `

No relevant documents were found for this question. Answer from general knowledge and say so if the answer depends on project-specific material you don't have.`

const contextHeader = `

Use the following document excerpts as context for your answer:

`

const contextFooter = `
When you use information from one of the excerpts above, you may reference the document by filename.`

// buildSystemMessage assembles the system prompt: base preamble, then
// either the no-context preamble or a context header followed by one
// block per chunk, then the context footer.
//
// Grounded on llm_client.rs's build_system_message: same three-part
// shape (preamble, per-chunk block, footer), same block format
// `--- Document {i} (filename: {F}, relevance: {r:.2})\n{content}\n\n`.
func buildSystemMessage(chunks []retrieval.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString(basePreamble)

	if len(chunks) == 0 {
		b.WriteString(noContextPreamble)
		return b.String()
	}

	b.WriteString(contextHeader)
	for i, c := range chunks {
		fmt.Fprintf(&b, "--- Document %d (filename: %s, relevance: %.2f)\n%s\n\n", i+1, c.Filename, c.RelevanceScore, c.Content)
	}
	b.WriteString(contextFooter)
	return b.String()
}
