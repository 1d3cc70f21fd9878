package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// TextParser handles plain text (.txt) and markdown (.md) files.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := string(data)
	if content == "" {
		return &ParseResult{}, nil
	}

	sections := splitPageIntoSections(content, 1)
	if len(sections) == 0 {
		sections = []Section{{
			Heading: filepath.Base(path),
			Content: content,
			Type:    "paragraph",
		}}
	}

	return &ParseResult{Sections: sections}, nil
}
