package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts the text layer of a PDF résumé. Documents without
// a text layer (scanned images) fail to parse.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	sections := make([]Section, 0)

	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		sections = append(sections, splitPageIntoSections(text, i)...)
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text in PDF %s", path)
	}

	return &ParseResult{
		Sections: sections,
		Metadata: map[string]string{"pages": fmt.Sprintf("%d", totalPages)},
	}, nil
}

// splitPageIntoSections breaks page text into résumé sections using
// heading heuristics. The text before the first detected heading
// becomes a "header" section; it usually carries the candidate's name
// and contact details.
func splitPageIntoSections(text string, pageNum int) []Section {
	lines := strings.Split(text, "\n")
	var sections []Section
	var currentContent strings.Builder
	var currentHeading string
	first := true

	flush := func() {
		body := strings.TrimSpace(currentContent.String())
		if body == "" && currentHeading == "" {
			return
		}
		secType := classifySectionType(currentHeading)
		if first && currentHeading == "" {
			secType = "header"
		}
		sections = append(sections, Section{
			Heading:    currentHeading,
			Content:    body,
			PageNumber: pageNum,
			Type:       secType,
		})
		first = false
		currentContent.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if currentContent.Len() > 0 {
				currentContent.WriteString("\n")
			}
			continue
		}

		if isLikelyHeading(trimmed) {
			flush()
			currentHeading = trimmed
		} else {
			if currentContent.Len() > 0 {
				currentContent.WriteString("\n")
			}
			currentContent.WriteString(trimmed)
		}
	}
	flush()

	// If nothing matched the heuristics, return the whole page as one
	// section so downstream chunking still sees the text.
	if len(sections) == 0 && strings.TrimSpace(text) != "" {
		sections = append(sections, Section{
			Content:    text,
			PageNumber: pageNum,
			Type:       "paragraph",
		})
	}

	return sections
}

// résumé section labels in English and Portuguese. Brazilian CVs are
// the primary corpus.
var headingKeywords = []string{
	"experience", "work experience", "professional experience",
	"education", "academic background", "skills", "competencies",
	"certifications", "certificates", "languages", "projects", "summary",
	"objective", "qualifications", "training", "courses",
	"experiência", "experiência profissional", "formação",
	"formação acadêmica", "habilidades", "competências",
	"certificações", "idiomas", "projetos", "resumo", "objetivo",
	"qualificações", "cursos",
}

func isLikelyHeading(line string) bool {
	if len(line) > 60 {
		return false
	}
	lower := strings.ToLower(strings.TrimRight(line, ":"))
	for _, kw := range headingKeywords {
		if lower == kw {
			return true
		}
	}
	// All caps and short, e.g. "EXPERIÊNCIA PROFISSIONAL"
	if len(line) > 2 && line == strings.ToUpper(line) && strings.ContainsAny(line, "ABCDEFGHIJKLMNOPQRSTUVWXYZÁÉÍÓÚÂÊÔÃÕÇ") {
		return true
	}
	return false
}

func classifySectionType(heading string) string {
	lower := strings.ToLower(heading)
	switch {
	case strings.Contains(lower, "experi") || strings.Contains(lower, "work"):
		return "experience"
	case strings.Contains(lower, "educa") || strings.Contains(lower, "forma") || strings.Contains(lower, "academ"):
		return "education"
	case strings.Contains(lower, "skill") || strings.Contains(lower, "habilidade") ||
		strings.Contains(lower, "compet") || strings.Contains(lower, "tecnolog"):
		return "skills"
	case strings.Contains(lower, "certifi") || strings.Contains(lower, "curso") ||
		strings.Contains(lower, "training") || strings.Contains(lower, "course"):
		return "skills"
	case strings.Contains(lower, "idioma") || strings.Contains(lower, "language"):
		return "skills"
	default:
		return "paragraph"
	}
}
