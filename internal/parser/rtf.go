// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"os"
	"regexp"
)

var (
	rtfControlWord = regexp.MustCompile(`\\[a-zA-Z]+\d*\s*`)
	rtfBraces      = regexp.MustCompile(`[{}]`)
)

// parseRTF extracts text from an RTF file by stripping control words and
// braces rather than fully parsing the RTF grammar.
func parseRTF(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read RTF file: %w", err)
	}

	text := rtfControlWord.ReplaceAllString(string(content), "")
	text = rtfBraces.ReplaceAllString(text, "")

	if text == "" {
		return "", fmt.Errorf("no content extracted from RTF: %s", filePath)
	}
	return text, nil
}
