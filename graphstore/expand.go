package graphstore

import (
	"context"
	"fmt"
	"sort"
)

// WorkHistoryEntry is one employment record on a candidate profile.
// Dates are ISO strings as stored on the WORKED_AT edge; either may be
// empty when the source résumé omitted it.
type WorkHistoryEntry struct {
	Organization string
	StartDate    string
	EndDate      string
}

// CompetencyEntry is one competency on a candidate profile. Years is
// zero when the résumé did not state experience length.
type CompetencyEntry struct {
	Name  string
	Years int64
}

// CandidateProfile is the expanded context for one retrieved chunk:
// the person the chunk's subgraph reaches, their aggregated work
// history and competencies, plus the chunk itself as semantic context.
type CandidateProfile struct {
	Name         string
	WorkHistory  []WorkHistoryEntry
	Competencies []CompetencyEntry
	ChunkText    string
	Score        float64
}

// expansionQuery walks from a chunk through up to two FROM_CHUNK hops
// to the person it describes, then aggregates that person's employment
// and competency edges. Direction is unconstrained on the traversal
// because provenance edges point entity-to-chunk.
const expansionQuery = `
	MATCH (c:Chunk {uid: $uid})-[:FROM_CHUNK*0..2]-(p:Person)
	OPTIONAL MATCH (p)-[w:WORKED_AT]->(o:Organization)
	OPTIONAL MATCH (p)-[hc:HAS_COMPETENCY]->(comp:Competency)
	RETURN
		p.name AS candidateName,
		collect(DISTINCT {organization: o.name, start: w.start_date, end: w.end_date}) AS workHistory,
		collect(DISTINCT {competency: comp.name, years: hc.years_experience}) AS competencies
	LIMIT 1`

// ExpandChunk runs the context expansion query for one retrieved chunk.
// When no Person is reachable the profile comes back with an empty name
// and empty lists; the chunk text and score always carry through from
// the ref so callers can fall back to raw text.
func (s *Store) ExpandChunk(ctx context.Context, ref ChunkRef) (*CandidateProfile, error) {
	rows, err := s.run.Run(ctx, expansionQuery, map[string]any{"uid": ref.UID})
	if err != nil {
		return nil, fmt.Errorf("expanding chunk %s: %w", ref.UID, err)
	}

	profile := &CandidateProfile{
		ChunkText: ref.Text,
		Score:     ref.Score,
	}
	if len(rows) == 0 {
		return profile, nil
	}

	row := rows[0]
	profile.Name = asString(row["candidateName"])
	profile.WorkHistory = parseWorkHistory(row["workHistory"])
	profile.Competencies = parseCompetencies(row["competencies"])
	return profile, nil
}

// parseWorkHistory converts the collected maps into ordered entries.
// Entries whose fields are all null (the OPTIONAL MATCH found nothing)
// are dropped, duplicates are collapsed, and the result is sorted by
// start date descending with undated entries last.
func parseWorkHistory(v any) []WorkHistoryEntry {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	seen := make(map[WorkHistoryEntry]bool)
	var out []WorkHistoryEntry
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := WorkHistoryEntry{
			Organization: asString(m["organization"]),
			StartDate:    asString(m["start"]),
			EndDate:      asString(m["end"]),
		}
		if e.Organization == "" && e.StartDate == "" && e.EndDate == "" {
			continue
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].StartDate, out[j].StartDate
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a > b
	})
	return out
}

// parseCompetencies converts collected maps into entries sorted by
// name, dropping all-null placeholders and duplicates.
func parseCompetencies(v any) []CompetencyEntry {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	seen := make(map[CompetencyEntry]bool)
	var out []CompetencyEntry
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := CompetencyEntry{
			Name:  asString(m["competency"]),
			Years: asInt(m["years"]),
		}
		if e.Name == "" {
			continue
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
