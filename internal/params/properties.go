package params

import (
	"strconv"
	"strings"
)

// Property names accepted by Property.
const (
	PropName        = "name"
	PropValue       = "value"
	PropRaw         = "raw"
	PropType        = "type"
	PropRuleCount   = "rule-count"
	PropEnvironment = "environment"
	PropFQN         = "fqn"
	PropJMESPath    = "jmes-path"
	PropSecret      = "secret"
	PropScope       = "scope"
	PropDescription = "description"
	PropProjectName = "project-name"
	PropCreatedAt   = "created-at"
	PropModifiedAt  = "modified-at"
)

// KnownProperties lists every property in display order.
var KnownProperties = []string{
	PropName, PropValue, PropRaw, PropType, PropRuleCount, PropEnvironment,
	PropFQN, PropJMESPath, PropSecret, PropScope, PropDescription,
	PropProjectName, PropCreatedAt, PropModifiedAt,
}

// IsProperty reports whether name is a known property.
func IsProperty(name string) bool {
	for _, p := range KnownProperties {
		if p == name {
			return true
		}
	}
	return false
}

// Property renders one property of d. A nil detail, used for a parameter
// missing on one side of a diff, renders every property as "". Unknown names
// also render as "".
func Property(d *Detail, name string) string {
	if d == nil {
		return ""
	}
	switch name {
	case PropName:
		return d.Name
	case PropValue:
		return d.Value
	case PropRaw:
		return d.RawValue
	case PropType:
		return d.ParamType
	case PropRuleCount:
		return strconv.Itoa(len(d.Rules))
	case PropEnvironment:
		return d.EnvName
	case PropFQN:
		return d.FQN
	case PropJMESPath:
		return d.JMESPath
	case PropSecret:
		return strconv.FormatBool(d.Secret)
	case PropScope:
		if d.External {
			return "external"
		}
		return "internal"
	case PropDescription:
		return d.Description
	case PropProjectName:
		return d.ProjectName
	case PropCreatedAt:
		return d.CreatedAt
	case PropModifiedAt:
		return d.ModifiedAt
	}
	return ""
}

// Properties renders names in order.
func Properties(d *Detail, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Property(d, n)
	}
	return out
}

// Joined renders names and joins them with ",\n" as the diff table shows them.
// A missing detail renders as "".
func Joined(d *Detail, names []string) string {
	if d == nil {
		return ""
	}
	return strings.Join(Properties(d, names), ",\n")
}
