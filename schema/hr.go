package schema

// Node labels for the HR domain graph. Abstract types (Person,
// Organization, Competency, Resource, Qualification) carry the property
// tables; concrete subtypes are layered on via IS_A patterns so traversal
// logic can address the abstract label without enumerating subtypes.
const (
	NodePerson             NodeType = "Person"
	NodeProfessional       NodeType = "Professional"
	NodeOrganization       NodeType = "Organization"
	NodeEmployer           NodeType = "Employer"
	NodeClient             NodeType = "Client"
	NodeCompetency         NodeType = "Competency"
	NodeSkill              NodeType = "Skill"
	NodeTechnicalKnowledge NodeType = "TechnicalKnowledge"
	NodeResource           NodeType = "Resource"
	NodeTechnology         NodeType = "Technology"
	NodeFramework          NodeType = "Framework"
	NodeQualification      NodeType = "Qualification"
	NodeCertification      NodeType = "Certification"
	NodeTraining           NodeType = "Training"
	NodeProject            NodeType = "Project"
	NodeLanguage           NodeType = "Language"
)

// Relationship labels.
const (
	RelIsA                RelType = "IS_A"
	RelHasCompetency      RelType = "HAS_COMPETENCY"
	RelUsesResource       RelType = "USES_RESOURCE"
	RelParticipatedIn     RelType = "PARTICIPATED_IN"
	RelHasQualification   RelType = "HAS_QUALIFICATION"
	RelSpeaks             RelType = "SPEAKS"
	RelWorkedAt           RelType = "WORKED_AT"
	RelRequiresCompetency RelType = "REQUIRES_COMPETENCY"
	RelRequiresResource   RelType = "REQUIRES_RESOURCE"
	RelRelatedTo          RelType = "RELATED_TO"
	RelFromChunk          RelType = "FROM_CHUNK"
)

// hrCatalog is the process-wide HR schema, validated once at init.
var hrCatalog = MustNew(hrNodeTypes, hrRelTypes, hrPatterns)

// Default returns the HR schema catalog.
func Default() *Catalog {
	return hrCatalog
}

var hrNodeTypes = []NodeDef{
	{Label: NodePerson, Properties: []Property{
		{Name: "name", Type: PropString},
		{Name: "email", Type: PropString},
	}},
	{Label: NodeProfessional, Properties: []Property{
		{Name: "seniority", Type: PropString},
		{Name: "current_role", Type: PropString},
	}},
	{Label: NodeOrganization, Properties: []Property{
		{Name: "name", Type: PropString},
		{Name: "sector", Type: PropString},
	}},
	{Label: NodeEmployer},
	{Label: NodeClient},
	{Label: NodeCompetency, Properties: []Property{
		{Name: "name", Type: PropString},
		{Name: "macro_type", Type: PropString},
	}},
	{Label: NodeSkill},
	{Label: NodeTechnicalKnowledge},
	{Label: NodeResource, Properties: []Property{
		{Name: "name", Type: PropString},
		{Name: "category", Type: PropString},
	}},
	{Label: NodeTechnology},
	{Label: NodeFramework},
	{Label: NodeQualification, Properties: []Property{
		{Name: "name", Type: PropString},
		{Name: "issuing_body", Type: PropString},
	}},
	{Label: NodeCertification},
	{Label: NodeTraining},
	{Label: NodeProject, Properties: []Property{
		{Name: "name", Type: PropString},
		{Name: "business_area", Type: PropString},
		{Name: "status", Type: PropString},
	}},
	{Label: NodeLanguage, Properties: []Property{
		{Name: "name", Type: PropString},
	}},
}

var hrRelTypes = []RelDef{
	{Label: RelIsA, Description: "hierarchy from concrete to abstract type"},
	{Label: RelHasCompetency, Properties: []Property{
		{Name: "proficiency_level", Type: PropString},
		{Name: "years_experience", Type: PropInteger},
	}},
	{Label: RelUsesResource, Properties: []Property{
		{Name: "proficiency_level", Type: PropString},
		{Name: "last_used_year", Type: PropInteger},
	}},
	{Label: RelParticipatedIn, Properties: []Property{
		{Name: "start_date", Type: PropDate},
		{Name: "end_date", Type: PropDate},
		{Name: "role", Type: PropString},
	}},
	{Label: RelHasQualification, Properties: []Property{
		{Name: "obtained_date", Type: PropDate},
		{Name: "expiry_date", Type: PropDate},
	}},
	{Label: RelSpeaks, Properties: []Property{
		{Name: "fluency", Type: PropString},
	}},
	{Label: RelWorkedAt, Properties: []Property{
		{Name: "start_date", Type: PropDate},
		{Name: "end_date", Type: PropDate},
	}},
	{Label: RelRequiresCompetency},
	{Label: RelRequiresResource},
	{Label: RelRelatedTo, Description: "associative link between competencies, no hierarchy implied"},
	{Label: RelFromChunk, Description: "links an extracted text chunk to the entities it describes"},
}

var hrPatterns = []Pattern{
	{NodeProfessional, RelIsA, NodePerson},
	{NodeEmployer, RelIsA, NodeOrganization},
	{NodeClient, RelIsA, NodeOrganization},
	{NodeSkill, RelIsA, NodeCompetency},
	{NodeTechnicalKnowledge, RelIsA, NodeCompetency},
	{NodeTechnology, RelIsA, NodeResource},
	{NodeFramework, RelIsA, NodeResource},
	{NodeCertification, RelIsA, NodeQualification},
	{NodeTraining, RelIsA, NodeQualification},
	{NodePerson, RelHasCompetency, NodeCompetency},
	{NodePerson, RelUsesResource, NodeResource},
	{NodePerson, RelParticipatedIn, NodeProject},
	{NodePerson, RelHasQualification, NodeQualification},
	{NodePerson, RelSpeaks, NodeLanguage},
	{NodePerson, RelWorkedAt, NodeOrganization},
	{NodeProject, RelRequiresCompetency, NodeCompetency},
	{NodeProject, RelRequiresResource, NodeResource},
	{NodeCompetency, RelRelatedTo, NodeCompetency},
}
