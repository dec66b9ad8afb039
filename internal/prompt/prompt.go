// Package prompt builds the grounding prompt sent to the language model.
package prompt

import (
	"strings"

	"github.com/hyperjump/lexrag/internal/models"
)

// ContextSeparator joins chunk texts in the context block.
const ContextSeparator = "\n\n"

// Template is the legal-assistant instruction with one {context} and one {question} placeholder.
const Template = `You are a legal AI assistant specializing in Terms & Conditions, Privacy Policies, and Legal Contracts. 

Use **only** the following context extracted from legal documents:
{context}

Provide accurate, precise answers based ONLY on the provided context. If information is not in the context, clearly state this. Use formal, professional language appropriate for legal documents. Always cite sources where relevant.

Question: {question}
Answer:`

// Context joins chunk texts in order with a blank line between them.
func Context(chunks []models.Chunk) string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return strings.Join(texts, ContextSeparator)
}

// Assemble substitutes the chunk context and the question into Template.
// Placeholders inside chunk text or the question are left as is.
func Assemble(chunks []models.Chunk, question string) string {
	r := strings.NewReplacer("{context}", Context(chunks), "{question}", question)
	return r.Replace(Template)
}

// ExtractContext returns the context block of a prompt built by Assemble.
func ExtractContext(prompt string) (string, bool) {
	const (
		head = "Use **only** the following context extracted from legal documents:\n"
		tail = "\n\nProvide accurate, precise answers"
	)
	start := strings.Index(prompt, head)
	if start < 0 {
		return "", false
	}
	rest := prompt[start+len(head):]
	end := strings.LastIndex(rest, tail)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
