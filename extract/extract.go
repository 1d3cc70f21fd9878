// Package extract turns résumé text chunks into graph elements using an
// LLM constrained by the HR schema catalog. Elements the model proposes
// outside the catalog are dropped, never persisted.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/talentbase/hrgraph/llm"
	"github.com/talentbase/hrgraph/schema"
)

// Entity is a validated node proposal: the label is guaranteed to be a
// concrete or abstract type from the catalog.
type Entity struct {
	Name       string
	Label      schema.NodeType
	Properties map[string]any
}

// Relationship is a validated edge proposal between two extracted
// entities. The (source label, type, target label) triple is guaranteed
// to match a declared pattern.
type Relationship struct {
	Source     string
	Target     string
	Type       schema.RelType
	Properties map[string]any
}

// Result is the outcome of extracting one chunk. Dropped counters track
// model proposals rejected by catalog validation.
type Result struct {
	Entities             []Entity
	Relationships        []Relationship
	DroppedEntities      int
	DroppedRelationships int
}

// Extractor runs schema-constrained extraction against a chat model.
type Extractor struct {
	chat    llm.Provider
	catalog *schema.Catalog
}

// New returns an Extractor bound to a chat provider and a catalog.
func New(chat llm.Provider, catalog *schema.Catalog) *Extractor {
	return &Extractor{chat: chat, catalog: catalog}
}

const entityPrompt = `You are an entity extraction engine for résumé and CV documents.
Extract entities from the text below. Résumés may be written in English or Portuguese.

Use ONLY the node types and properties declared in this schema:

%s

Return a JSON object with exactly one key:
  "entities" : array of {"name": string, "label": string, "properties": object}

Rules:
- "label" must be one of the declared node types, exactly as written.
- Prefer the most specific type (Employer over Organization, Skill over Competency).
- "properties" holds only properties declared for that type; omit unknown ones.
- Only include entities clearly supported by the text.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

EXAMPLE:

Input: "Maria Silva, desenvolvedora sênior. Trabalhou na Acme Corp de 2019 a 2021. Python (5 anos). Certificação AWS Solutions Architect."
Output:
{"entities": [{"name": "Maria Silva", "label": "Professional", "properties": {"name": "Maria Silva", "seniority": "senior"}}, {"name": "Acme Corp", "label": "Employer", "properties": {"name": "Acme Corp"}}, {"name": "Python", "label": "Skill", "properties": {"name": "Python"}}, {"name": "AWS Solutions Architect", "label": "Certification", "properties": {"name": "AWS Solutions Architect"}}]}

TEXT:
%s`

const relationshipPrompt = `You are a relationship extraction engine for résumé and CV documents.
Given the text and a list of known entities, extract relationships between them.

KNOWN ENTITIES:
%s

Use ONLY the relationship types and allowed (source)-[relation]->(target) patterns declared in this schema:

%s

Return a JSON object with exactly one key:
  "relationships" : array of {"source": string, "target": string, "type": string, "properties": object}

Rules:
- "source" and "target" must be entity names from the KNOWN ENTITIES list.
- "type" must be one of the declared relationship types, exactly as written.
- The (source type, relation, target type) triple must match an allowed pattern.
- "properties" holds only properties declared for that relationship type.
- Dates use ISO format (YYYY-MM or YYYY-MM-DD).
- Only include relationships clearly supported by the text.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

EXAMPLE:

Input entities: ["Maria Silva", "Acme Corp", "Python"]
Input text: "Maria Silva trabalhou na Acme Corp de 2019 a 2021. Python (5 anos)."
Output:
{"relationships": [{"source": "Maria Silva", "target": "Acme Corp", "type": "WORKED_AT", "properties": {"start_date": "2019-01", "end_date": "2021-12"}}, {"source": "Maria Silva", "target": "Python", "type": "HAS_COMPETENCY", "properties": {"years_experience": 5}}]}

TEXT:
%s`

// rawEntity mirrors the JSON the model returns for one entity.
type rawEntity struct {
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// rawRelationship mirrors the JSON the model returns for one edge.
type rawRelationship struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

type entityResult struct {
	Entities []rawEntity `json:"entities"`
}

type relationshipResult struct {
	Relationships []rawRelationship `json:"relationships"`
}

// Extract runs the two-step pipeline on one chunk of text: entities
// first, then relationships over the surviving entity set. Catalog
// violations are dropped and counted; an error is returned only when a
// model call or its JSON output fails outright.
func (e *Extractor) Extract(ctx context.Context, text string) (*Result, error) {
	entities, droppedEnts, err := e.extractEntities(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("entity step: %w", err)
	}

	rels, droppedRels, err := e.extractRelationships(ctx, text, entities)
	if err != nil {
		// Entities alone are still worth persisting.
		slog.Warn("extract: relationship step failed, keeping entities only", "error", err)
		rels = nil
	}

	return &Result{
		Entities:             entities,
		Relationships:        rels,
		DroppedEntities:      droppedEnts,
		DroppedRelationships: droppedRels,
	}, nil
}

func (e *Extractor) extractEntities(ctx context.Context, text string) ([]Entity, int, error) {
	prompt := fmt.Sprintf(entityPrompt, e.catalog.PromptGrammar(), text)

	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages:       []llm.Message{{Role: "user", Content: prompt}},
		Temperature:    0.0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, 0, fmt.Errorf("entity extraction llm chat: %w", err)
	}

	jsonStr, err := extractJSON(resp.Content)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing entity extraction result: %w", err)
	}

	var result entityResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, 0, fmt.Errorf("unmarshalling entity extraction result: %w", err)
	}

	var out []Entity
	dropped := 0
	seen := make(map[string]bool)

	for _, raw := range result.Entities {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			dropped++
			continue
		}
		label, ok := e.catalog.ResolveLabel(raw.Label)
		if !ok {
			slog.Warn("extract: dropping entity with undeclared label",
				"name", name, "label", raw.Label)
			dropped++
			continue
		}
		key := strings.ToLower(name) + "|" + string(label)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Entity{
			Name:       name,
			Label:      label,
			Properties: filterProperties(raw.Properties, e.nodeProperties(label)),
		})
	}

	return out, dropped, nil
}

func (e *Extractor) extractRelationships(ctx context.Context, text string, entities []Entity) ([]Relationship, int, error) {
	if len(entities) < 2 {
		return nil, 0, nil
	}

	byName := make(map[string]Entity, len(entities))
	names := make([]string, 0, len(entities))
	for _, ent := range entities {
		byName[strings.ToLower(ent.Name)] = ent
		names = append(names, ent.Name)
	}

	namesJSON, _ := json.Marshal(names)
	prompt := fmt.Sprintf(relationshipPrompt, string(namesJSON), e.catalog.PromptGrammar(), text)

	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages:       []llm.Message{{Role: "user", Content: prompt}},
		Temperature:    0.0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, 0, fmt.Errorf("relationship extraction llm chat: %w", err)
	}

	jsonStr, err := extractJSON(resp.Content)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing relationship extraction result: %w", err)
	}

	var result relationshipResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, 0, fmt.Errorf("unmarshalling relationship extraction result: %w", err)
	}

	var out []Relationship
	dropped := 0

	for _, raw := range result.Relationships {
		src, srcOK := byName[strings.ToLower(strings.TrimSpace(raw.Source))]
		dst, dstOK := byName[strings.ToLower(strings.TrimSpace(raw.Target))]
		if !srcOK || !dstOK {
			slog.Warn("extract: dropping relationship with endpoint outside entity set",
				"source", raw.Source, "target", raw.Target, "type", raw.Type)
			dropped++
			continue
		}
		rel, ok := e.catalog.ResolveRelation(raw.Type)
		if !ok {
			slog.Warn("extract: dropping undeclared relationship type",
				"type", raw.Type, "source", src.Name, "target", dst.Name)
			dropped++
			continue
		}
		if !e.catalog.AllowsPattern(src.Label, rel, dst.Label) {
			slog.Warn("extract: dropping pattern violation",
				"source_label", src.Label, "type", rel, "target_label", dst.Label)
			dropped++
			continue
		}
		out = append(out, Relationship{
			Source:     src.Name,
			Target:     dst.Name,
			Type:       rel,
			Properties: filterProperties(raw.Properties, e.relProperties(rel)),
		})
	}

	return out, dropped, nil
}

// nodeProperties returns the declared property names for a node type,
// including those inherited from its IS_A chain.
func (e *Extractor) nodeProperties(label schema.NodeType) map[string]bool {
	allowed := make(map[string]bool)
	for _, l := range append([]schema.NodeType{label}, e.catalog.Supertypes(label)...) {
		if def, ok := e.catalog.Node(l); ok {
			for _, p := range def.Properties {
				allowed[p.Name] = true
			}
		}
	}
	return allowed
}

func (e *Extractor) relProperties(label schema.RelType) map[string]bool {
	allowed := make(map[string]bool)
	if def, ok := e.catalog.Relationship(label); ok {
		for _, p := range def.Properties {
			allowed[p.Name] = true
		}
	}
	return allowed
}

// filterProperties keeps only declared property keys with scalar values.
func filterProperties(props map[string]any, allowed map[string]bool) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any)
	for k, v := range props {
		if !allowed[k] {
			continue
		}
		switch v.(type) {
		case string, float64, int, int64, bool:
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON attempts to find a valid JSON object in the LLM response text.
// It handles common LLM quirks: markdown code blocks, text before/after JSON.
func extractJSON(raw string) (string, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}

	return "", fmt.Errorf("no JSON object found in response")
}
