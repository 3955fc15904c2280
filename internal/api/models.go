package api

import "strings"

// Page is the paginated envelope every list endpoint returns.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Environment as returned by /environments/.
type Environment struct {
	URL         string  `json:"url"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parent      *string `json:"parent"`
	CreatedAt   string  `json:"created_at"`
	ModifiedAt  string  `json:"modified_at"`
}

// ParentURL returns the parent link or "" for the root environment.
func (e Environment) ParentURL() string {
	if e.Parent == nil {
		return ""
	}
	return *e.Parent
}

// EnvironmentCreate is the POST body for a new environment.
type EnvironmentCreate struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Parent      string  `json:"parent"`
}

// EnvironmentUpdate is the PATCH body for an environment.
type EnvironmentUpdate struct {
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// TagUsage reports how often a tag has been read.
type TagUsage struct {
	LastRead   *string `json:"last_read"`
	LastReadBy string  `json:"last_read_by"`
	TotalReads int     `json:"total_reads"`
}

// Tag is a named point-in-time of one environment.
type Tag struct {
	URL         string    `json:"url"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Timestamp   string    `json:"timestamp"`
	Usage       *TagUsage `json:"usage,omitempty"`
}

// TagWrite is the POST/PATCH body for a tag.
type TagWrite struct {
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// Project as returned by /projects/.
type Project struct {
	URL         string   `json:"url"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DependsOn   *string  `json:"depends_on"`
	Dependents  []string `json:"dependents"`
	CreatedAt   string   `json:"created_at"`
	ModifiedAt  string   `json:"modified_at"`
}

// ParentURL returns the parent project link or "".
func (p Project) ParentURL() string {
	if p.DependsOn == nil {
		return ""
	}
	return *p.DependsOn
}

// ProjectWrite is the POST/PATCH body for a project.
type ProjectWrite struct {
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	DependsOn   *string `json:"depends_on,omitempty"`
}

// Rule types accepted by the server.
const (
	RuleMax    = "max"
	RuleMin    = "min"
	RuleMaxLen = "max_len"
	RuleMinLen = "min_len"
	RuleRegex  = "regex"
)

// RuleTypes lists every rule type in the order rule edits are applied.
var RuleTypes = []string{RuleMax, RuleMin, RuleMaxLen, RuleMinLen, RuleRegex}

// RuleDisplayName converts the wire rule type into the CLI spelling.
func RuleDisplayName(ruleType string) string {
	return strings.ReplaceAll(ruleType, "_", "-")
}

// Rule constrains the values of a parameter.
type Rule struct {
	URL        string `json:"url"`
	ID         string `json:"id"`
	Parameter  string `json:"parameter"`
	Type       string `json:"type"`
	Constraint string `json:"constraint"`
	CreatedAt  string `json:"created_at"`
	ModifiedAt string `json:"modified_at"`
}

// RuleWrite is the POST/PATCH body for a rule.
type RuleWrite struct {
	Type       string  `json:"type,omitempty"`
	Constraint *string `json:"constraint,omitempty"`
}

// Value is one environment's value for a parameter.
type Value struct {
	URL             string  `json:"url"`
	ID              string  `json:"id"`
	Environment     string  `json:"environment"`
	EnvironmentName string  `json:"environment_name"`
	Parameter       string  `json:"parameter"`
	External        bool    `json:"external"`
	ExternalFQN     string  `json:"external_fqn"`
	ExternalFilter  string  `json:"external_filter"`
	ExternalError   *string `json:"external_error"`
	Value           *string `json:"value"`
	Evaluated       bool    `json:"evaluated"`
	Secret          *bool   `json:"secret"`
	InternalValue   *string `json:"internal_value"`
	Interpolated    bool    `json:"interpolated"`
	CreatedAt       string  `json:"created_at"`
	ModifiedAt      string  `json:"modified_at"`
}

// ValueWrite is the POST/PATCH body for a value.
type ValueWrite struct {
	Environment    string  `json:"environment,omitempty"`
	External       *bool   `json:"external,omitempty"`
	ExternalFQN    *string `json:"external_fqn,omitempty"`
	ExternalFilter *string `json:"external_filter,omitempty"`
	InternalValue  *string `json:"internal_value,omitempty"`
	Interpolated   *bool   `json:"interpolated,omitempty"`
}

// Parameter types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBool    = "boolean"
)

// Parameter as returned by /projects/{id}/parameters/.
type Parameter struct {
	URL                  string            `json:"url"`
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	Secret               bool              `json:"secret"`
	Type                 string            `json:"type"`
	Rules                []Rule            `json:"rules"`
	Project              string            `json:"project"`
	ProjectName          string            `json:"project_name"`
	ReferencingTemplates []string          `json:"referencing_templates"`
	ReferencingValues    []string          `json:"referencing_values"`
	Values               map[string]*Value `json:"values"`
	Overrides            *string           `json:"overrides"`
	CreatedAt            string            `json:"created_at"`
	ModifiedAt           string            `json:"modified_at"`
}

// ParameterWrite is the POST/PATCH body for a parameter.
type ParameterWrite struct {
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Secret      *bool   `json:"secret,omitempty"`
	Type        *string `json:"type,omitempty"`
}

// ParameterQuery holds the query options of the parameter listing.
type ParameterQuery struct {
	Environment string
	AsOf        string
	Name        string
	MaskSecrets bool
	Values      bool
	Evaluate    bool
}

// ExportQuery holds the query options of the parameter export.
type ExportQuery struct {
	Format      string
	Environment string
	AsOf        string
	StartsWith  string
	EndsWith    string
	Contains    string
	Export      bool
	MaskSecrets bool
}

// Template as returned by /projects/{id}/templates/.
type Template struct {
	URL                  string   `json:"url"`
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Evaluated            bool     `json:"evaluated"`
	Body                 *string  `json:"body"`
	ReferencedParameters []string `json:"referenced_parameters"`
	ReferencedTemplates  []string `json:"referenced_templates"`
	ReferencingTemplates []string `json:"referencing_templates"`
	HasSecret            bool     `json:"has_secret"`
	CreatedAt            string   `json:"created_at"`
	ModifiedAt           string   `json:"modified_at"`
}

// TemplateWrite is the POST/PATCH body for a template.
type TemplateWrite struct {
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Body        *string `json:"body,omitempty"`
}

// TemplateQuery holds the query options of template reads.
type TemplateQuery struct {
	Name        string
	Environment string
	AsOf        string
	MaskSecrets bool
	Evaluate    bool
}

// TemplateLookupError is the 422 body of a failed template evaluation.
type TemplateLookupError struct {
	Detail []TemplateLookupErrorEntry `json:"detail"`
}

// TemplateLookupErrorEntry describes one parameter that failed to evaluate.
type TemplateLookupErrorEntry struct {
	ParameterID   string `json:"parameter_id"`
	ParameterName string `json:"parameter_name"`
	ErrorCode     string `json:"error_code"`
	ErrorDetail   string `json:"error_detail"`
}

// TaskStep is one push operation applied to a parameter.
type TaskStep struct {
	URL             string `json:"url"`
	ID              string `json:"id"`
	Operation       string `json:"operation"`
	Success         bool   `json:"success"`
	FQN             string `json:"fqn"`
	Environment     string `json:"environment"`
	EnvironmentName string `json:"environment_name"`
	Parameter       string `json:"parameter"`
	ParameterName   string `json:"parameter_name"`
	VenueID         string `json:"venue_id"`
	VenueName       string `json:"venue_name"`
	ErrorCode       string `json:"error_code"`
	ErrorDetail     string `json:"error_detail"`
	CreatedAt       string `json:"created_at"`
	ModifiedAt      string `json:"modified_at"`
}

// Named is the minimal shape of users, types, integrations, pushes and pulls
// used for name to id lookups.
type Named struct {
	URL  string `json:"url"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LastFromURL returns the trailing id segment of a resource URL.
func LastFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
