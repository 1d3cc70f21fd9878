package parser

import "context"

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section // Ordered sections extracted from the document
	Metadata map[string]string
}

// Section represents a logical section of a parsed document. Résumé
// documents usually yield one section per labelled block (experience,
// education, skills) plus a leading header section.
type Section struct {
	Heading    string
	Content    string
	PageNumber int
	Type       string // "header", "experience", "education", "skills", "table", "paragraph"
	Metadata   map[string]string
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
