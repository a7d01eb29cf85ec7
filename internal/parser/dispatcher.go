// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/northbound/kbengine/internal/logger"
)

// ParseFile routes a file to the appropriate parser based on its extension
func ParseFile(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var text string
	var err error

	switch ext {
	case ".pdf":
		text, err = parsePDF(filePath)
	case ".docx", ".doc":
		text, err = parseDOCX(filePath)
	case ".txt", ".md", ".markdown":
		text, err = parseText(filePath)
	case ".xlsx", ".xls":
		text, err = parseExcel(filePath)
	case ".html", ".htm":
		text, err = parseHTML(filePath)
	case ".eml":
		text, err = parseEmail(filePath)
	case ".rtf":
		text, err = parseRTF(filePath)
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}

	if err != nil {
		return "", err
	}

	snippet := text
	if len(snippet) > 150 {
		snippet = snippet[:150] + "..."
	}
	logger.Debugf("extracted %d characters from %s: %s", len(text), filePath, snippet)

	return text, nil
}

// IsSupportedFile checks if a file extension is supported
func IsSupportedFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	supported := []string{".pdf", ".docx", ".doc", ".txt", ".md", ".markdown", ".xlsx", ".xls", ".html", ".htm", ".eml", ".rtf"}
	for _, s := range supported {
		if ext == s {
			return true
		}
	}
	return false
}

// IsTemporaryFile checks if a file is a temporary file (e.g., ~$doc.docx)
func IsTemporaryFile(filePath string) bool {
	base := filepath.Base(filePath)
	// Check for common temporary file patterns
	if strings.HasPrefix(base, "~$") {
		return true
	}
	if strings.HasPrefix(base, "._") {
		return true
	}
	if strings.HasSuffix(base, ".tmp") {
		return true
	}
	return false
}
