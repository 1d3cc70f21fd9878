// Package schema defines the closed-world catalog for the HR knowledge
// graph: node types, relationship types, and the allowed
// (source, relation, target) patterns that constrain extraction and
// persistence. The catalog is a value object, built once and validated at
// construction, never mutated.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// NodeType is a declared node label.
type NodeType string

// RelType is a declared relationship label.
type RelType string

// PropType is the declared type of a node or relationship property.
type PropType string

const (
	PropString  PropType = "STRING"
	PropInteger PropType = "INTEGER"
	PropFloat   PropType = "FLOAT"
	PropDate    PropType = "DATE"
)

// Property declares a named, typed property on a node or relationship.
type Property struct {
	Name string
	Type PropType
}

// NodeDef declares a node type and its property set.
type NodeDef struct {
	Label      NodeType
	Properties []Property
}

// RelDef declares a relationship type and its optional property set.
type RelDef struct {
	Label       RelType
	Description string
	Properties  []Property
}

// Pattern is an allowed (source, relation, target) triple.
type Pattern struct {
	Source   NodeType
	Relation RelType
	Target   NodeType
}

func (p Pattern) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", p.Source, p.Relation, p.Target)
}

// Catalog is the validated, read-only schema: lookup tables over the
// declared node types, relationship types, and patterns, plus the IS_A
// hierarchy derived from the pattern table.
type Catalog struct {
	nodes       map[NodeType]NodeDef
	rels        map[RelType]RelDef
	patterns    map[Pattern]struct{}
	supertype   map[NodeType]NodeType // concrete -> immediate IS_A parent
	nodeOrder   []NodeType
	relOrder    []RelType
	patternList []Pattern
}

// New builds a Catalog from the given tables, rejecting inconsistent
// input: duplicate labels, patterns referencing undeclared labels,
// duplicate patterns, and IS_A chains that do not terminate at a
// declared type (cycles).
func New(nodes []NodeDef, rels []RelDef, patterns []Pattern) (*Catalog, error) {
	c := &Catalog{
		nodes:     make(map[NodeType]NodeDef, len(nodes)),
		rels:      make(map[RelType]RelDef, len(rels)),
		patterns:  make(map[Pattern]struct{}, len(patterns)),
		supertype: make(map[NodeType]NodeType),
	}

	for _, n := range nodes {
		if n.Label == "" {
			return nil, fmt.Errorf("schema: node type with empty label")
		}
		if _, dup := c.nodes[n.Label]; dup {
			return nil, fmt.Errorf("schema: duplicate node type %q", n.Label)
		}
		c.nodes[n.Label] = n
		c.nodeOrder = append(c.nodeOrder, n.Label)
	}

	for _, r := range rels {
		if r.Label == "" {
			return nil, fmt.Errorf("schema: relationship type with empty label")
		}
		if _, dup := c.rels[r.Label]; dup {
			return nil, fmt.Errorf("schema: duplicate relationship type %q", r.Label)
		}
		c.rels[r.Label] = r
		c.relOrder = append(c.relOrder, r.Label)
	}

	for _, p := range patterns {
		if _, ok := c.nodes[p.Source]; !ok {
			return nil, fmt.Errorf("schema: pattern %s references undeclared source %q", p, p.Source)
		}
		if _, ok := c.nodes[p.Target]; !ok {
			return nil, fmt.Errorf("schema: pattern %s references undeclared target %q", p, p.Target)
		}
		if _, ok := c.rels[p.Relation]; !ok {
			return nil, fmt.Errorf("schema: pattern %s references undeclared relation %q", p, p.Relation)
		}
		if _, dup := c.patterns[p]; dup {
			return nil, fmt.Errorf("schema: duplicate pattern %s", p)
		}
		c.patterns[p] = struct{}{}
		c.patternList = append(c.patternList, p)

		if p.Relation == RelIsA {
			if _, dup := c.supertype[p.Source]; dup {
				return nil, fmt.Errorf("schema: node type %q has more than one IS_A parent", p.Source)
			}
			c.supertype[p.Source] = p.Target
		}
	}

	// Every IS_A chain must terminate at a declared root within the
	// catalog; a cycle would loop past the node-type count.
	for label := range c.supertype {
		seen := 0
		for cur := label; ; {
			parent, ok := c.supertype[cur]
			if !ok {
				break
			}
			seen++
			if seen > len(c.nodes) {
				return nil, fmt.Errorf("schema: IS_A cycle involving %q", label)
			}
			cur = parent
		}
	}

	return c, nil
}

// MustNew is New for static catalogs where an error is a programming
// mistake.
func MustNew(nodes []NodeDef, rels []RelDef, patterns []Pattern) *Catalog {
	c, err := New(nodes, rels, patterns)
	if err != nil {
		panic(err)
	}
	return c
}

// HasNode reports whether a label is declared. The catalog is
// closed-world: extraction must drop any label for which this is false.
func (c *Catalog) HasNode(label NodeType) bool {
	_, ok := c.nodes[label]
	return ok
}

// HasRelationship reports whether a relationship type is declared.
func (c *Catalog) HasRelationship(label RelType) bool {
	_, ok := c.rels[label]
	return ok
}

// Node returns the declaration for a label.
func (c *Catalog) Node(label NodeType) (NodeDef, bool) {
	n, ok := c.nodes[label]
	return n, ok
}

// Relationship returns the declaration for a relationship type.
func (c *Catalog) Relationship(label RelType) (RelDef, bool) {
	r, ok := c.rels[label]
	return r, ok
}

// Supertypes returns the IS_A chain above a label, nearest parent first.
// A label with no declared parent yields nil.
func (c *Catalog) Supertypes(label NodeType) []NodeType {
	var chain []NodeType
	for cur := label; ; {
		parent, ok := c.supertype[cur]
		if !ok {
			return chain
		}
		chain = append(chain, parent)
		cur = parent
	}
}

// AllowsPattern reports whether a (source, relation, target) triple
// matches a declared pattern. Patterns declared against an abstract
// label admit its concrete subtypes: the check walks each side's IS_A
// chain, so Person-[WORKED_AT]->Employer passes via the declared
// Person-[WORKED_AT]->Organization pattern.
func (c *Catalog) AllowsPattern(source NodeType, rel RelType, target NodeType) bool {
	srcChain := append([]NodeType{source}, c.Supertypes(source)...)
	tgtChain := append([]NodeType{target}, c.Supertypes(target)...)
	for _, s := range srcChain {
		for _, t := range tgtChain {
			if _, ok := c.patterns[Pattern{Source: s, Relation: rel, Target: t}]; ok {
				return true
			}
		}
	}
	return false
}

// ResolveLabel maps a raw extracted label to a declared NodeType using a
// case-insensitive match. Returns false when the label is outside the
// catalog (closed world: the caller drops the element).
func (c *Catalog) ResolveLabel(raw string) (NodeType, bool) {
	trimmed := strings.TrimSpace(raw)
	if n, ok := c.nodes[NodeType(trimmed)]; ok {
		return n.Label, true
	}
	lower := strings.ToLower(trimmed)
	for label := range c.nodes {
		if strings.ToLower(string(label)) == lower {
			return label, true
		}
	}
	return "", false
}

// ResolveRelation maps a raw extracted relation label to a declared
// RelType, case-insensitively.
func (c *Catalog) ResolveRelation(raw string) (RelType, bool) {
	trimmed := strings.TrimSpace(raw)
	if r, ok := c.rels[RelType(trimmed)]; ok {
		return r.Label, true
	}
	upper := strings.ToUpper(trimmed)
	for label := range c.rels {
		if strings.ToUpper(string(label)) == upper {
			return label, true
		}
	}
	return "", false
}

// NodeTypes returns all declared node definitions in declaration order.
func (c *Catalog) NodeTypes() []NodeDef {
	out := make([]NodeDef, len(c.nodeOrder))
	for i, label := range c.nodeOrder {
		out[i] = c.nodes[label]
	}
	return out
}

// RelationshipTypes returns all declared relationship definitions in
// declaration order.
func (c *Catalog) RelationshipTypes() []RelDef {
	out := make([]RelDef, len(c.relOrder))
	for i, label := range c.relOrder {
		out[i] = c.rels[label]
	}
	return out
}

// Patterns returns all declared patterns in declaration order.
func (c *Catalog) Patterns() []Pattern {
	out := make([]Pattern, len(c.patternList))
	copy(out, c.patternList)
	return out
}

// PromptGrammar renders the catalog as the grammar section of an
// extraction prompt: node types with their properties, relationship
// types, and the allowed patterns. The rendering is deterministic so
// prompts are reproducible across runs.
func (c *Catalog) PromptGrammar() string {
	var b strings.Builder

	b.WriteString("NODE TYPES (use exactly these labels):\n")
	for _, n := range c.NodeTypes() {
		b.WriteString("- ")
		b.WriteString(string(n.Label))
		if parents := c.Supertypes(n.Label); len(parents) > 0 {
			fmt.Fprintf(&b, " (a kind of %s)", parents[0])
		}
		if len(n.Properties) > 0 {
			props := make([]string, len(n.Properties))
			for i, p := range n.Properties {
				props[i] = fmt.Sprintf("%s: %s", p.Name, strings.ToLower(string(p.Type)))
			}
			fmt.Fprintf(&b, " {%s}", strings.Join(props, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRELATIONSHIP TYPES (use exactly these labels):\n")
	for _, r := range c.RelationshipTypes() {
		if r.Label == RelIsA {
			continue // hierarchy is declared, not extracted
		}
		b.WriteString("- ")
		b.WriteString(string(r.Label))
		if len(r.Properties) > 0 {
			props := make([]string, len(r.Properties))
			for i, p := range r.Properties {
				props[i] = fmt.Sprintf("%s: %s", p.Name, strings.ToLower(string(p.Type)))
			}
			fmt.Fprintf(&b, " {%s}", strings.Join(props, ", "))
		}
		if r.Description != "" {
			b.WriteString(": " + r.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nALLOWED PATTERNS (every relationship must match one):\n")
	patterns := c.Patterns()
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p.Relation == RelIsA {
			continue
		}
		lines = append(lines, "- "+p.String())
	}
	sort.Strings(lines)
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")

	return b.String()
}
