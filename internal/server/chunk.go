package server

import "strings"

// maxCharsPerChunk keeps any single upstream prompt small enough that big
// selections neither hit body limits nor time out.
const maxCharsPerChunk = 3500

// chunkText splits text on paragraph boundaries first, then hard-slices
// paragraphs that alone exceed the limit. It always returns at least one
// element so callers can treat the single-chunk case uniformly.
func chunkText(text string, maxChars int) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []string
	buf := ""

	for _, p := range paragraphs {
		if len(buf)+len(p)+1 <= maxChars {
			buf = strings.TrimSpace(buf + "\n" + p)
			continue
		}

		if buf != "" {
			chunks = append(chunks, buf)
			buf = ""
		}

		if len(p) <= maxChars {
			buf = p
			continue
		}

		for i := 0; i < len(p); i += maxChars {
			end := min(i+maxChars, len(p))
			chunks = append(chunks, p[i:end])
		}
	}

	if buf != "" {
		chunks = append(chunks, buf)
	}

	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}
