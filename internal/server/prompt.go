package server

import (
	"fmt"
	"strings"
)

var allowedTones = map[string]bool{
	"precise":  true,
	"casual":   true,
	"bullet":   true,
	"academic": true,
}

func toneInstruction(tone string, n int) string {
	if tone == "bullet" {
		return fmt.Sprintf("Summarize the content in at most %d concise bullet points.", n)
	}
	return fmt.Sprintf("Summarize the content in at most %d sentences with a %s tone.", n, tone)
}

func chunkPrompt(instr, chunk string) string {
	return fmt.Sprintf("%s\n\n---\n%s", instr, chunk)
}

func partPrompt(instr, chunk string, part, total int) string {
	return fmt.Sprintf("%s\n\n(Part %d of %d)\n\n---\n%s", instr, part, total, chunk)
}

// synthesisPrompt merges per-part summaries of a long selection into the
// final prompt of the second stage.
func synthesisPrompt(instr string, partials []string) string {
	var b strings.Builder
	b.WriteString(instr)
	b.WriteString("\n")
	b.WriteString("You are given partial summaries of several parts of a longer text.\n")
	b.WriteString("Merge them into ONE cohesive summary. Eliminate redundancy and keep it tight.\n\n")
	b.WriteString("PARTIAL SUMMARIES:\n")
	for _, p := range partials {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
