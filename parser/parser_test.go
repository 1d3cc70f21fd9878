package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		format  string
		wantErr bool
	}{
		{"pdf", false},
		{"txt", false},
		{"md", false},
		{"xlsx", false},
		{"xls", false},
		{"docx", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run("format_"+tt.format, func(t *testing.T) {
			_, err := r.Get(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("Get(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestRegistryForPath(t *testing.T) {
	r := NewRegistry()

	p, err := r.ForPath("/tmp/resume.PDF")
	if err != nil {
		t.Fatalf("ForPath: %v", err)
	}
	if _, ok := p.(*PDFParser); !ok {
		t.Errorf("ForPath(.PDF) = %T, want *PDFParser", p)
	}

	if _, err := r.ForPath("/tmp/resume.docx"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestTextParserSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.txt")
	content := "Maria Silva\nmaria@example.com\n\nEXPERIÊNCIA PROFISSIONAL\nDesenvolvedora na Acme Corp de 2019 a 2021.\n\nHABILIDADES\nPython, Go, SQL\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Sections) != 3 {
		t.Fatalf("got %d sections, want 3: %+v", len(res.Sections), res.Sections)
	}
	if res.Sections[0].Type != "header" {
		t.Errorf("first section type = %q, want header", res.Sections[0].Type)
	}
	if res.Sections[1].Type != "experience" {
		t.Errorf("second section type = %q, want experience", res.Sections[1].Type)
	}
	if res.Sections[2].Type != "skills" {
		t.Errorf("third section type = %q, want skills", res.Sections[2].Type)
	}
}

func TestTextParserEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Sections) != 0 {
		t.Errorf("got %d sections for empty file, want 0", len(res.Sections))
	}
}

func TestIsLikelyHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"EXPERIÊNCIA PROFISSIONAL", true},
		{"Work Experience", true},
		{"Skills:", true},
		{"Formação Acadêmica", true},
		{"Worked on backend services for three years.", false},
		{"maria@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := isLikelyHeading(tt.line); got != tt.want {
				t.Errorf("isLikelyHeading(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClassifySectionType(t *testing.T) {
	tests := []struct {
		heading string
		want    string
	}{
		{"Professional Experience", "experience"},
		{"Experiência Profissional", "experience"},
		{"Education", "education"},
		{"Formação Acadêmica", "education"},
		{"Skills", "skills"},
		{"Competências", "skills"},
		{"Certificações", "skills"},
		{"Idiomas", "skills"},
		{"Summary", "paragraph"},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			if got := classifySectionType(tt.heading); got != tt.want {
				t.Errorf("classifySectionType(%q) = %q, want %q", tt.heading, got, tt.want)
			}
		})
	}
}

func TestSplitPageIntoSections_NoHeadings(t *testing.T) {
	text := "just a flat blob of resume text with no recognizable structure at all"
	secs := splitPageIntoSections(text, 2)
	if len(secs) != 1 {
		t.Fatalf("got %d sections, want 1", len(secs))
	}
	if secs[0].PageNumber != 2 {
		t.Errorf("PageNumber = %d, want 2", secs[0].PageNumber)
	}
	if secs[0].Type != "header" {
		t.Errorf("Type = %q, want header", secs[0].Type)
	}
}
