package params

import (
	"context"
	"fmt"
	"strings"

	"github.com/systmms/cloudtruth/internal/api"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/resolve"
)

// Actions reported by Set.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSet     = "set"
)

// SetRequest describes one parameter set. Nil pointers leave the field alone.
type SetRequest struct {
	Name        string
	Rename      string
	Description *string
	Secret      *bool
	Type        *string

	// StaticSource is true when --value, --input-file or --prompt was given.
	StaticSource bool
	Value        *string
	FQN          *string
	JMESPath     *string
	Evaluate     *bool

	// Rules maps a rule type to the constraint to create or update.
	Rules map[string]string
	// DeleteRules lists the rule types to remove before Rules apply.
	DeleteRules map[string]bool
}

// CheckSources rejects mixing a static value with an external reference, and
// template evaluation of an external reference.
func (r *SetRequest) CheckSources() error {
	external := r.FQN != nil || r.JMESPath != nil
	if r.StaticSource && external {
		return dserrors.Exit(dserrors.ExitConflictingValueSource,
			"Conflicting arguments: cannot specify prompt/input-file/value, and fqn/jmes-path")
	}
	if external && r.Evaluate != nil && *r.Evaluate {
		return dserrors.Exit(dserrors.ExitConflictingValueSource,
			"Conflicting arguments: evaluate only applies to a static value, not fqn/jmes-path")
	}
	return nil
}

func (r *SetRequest) finalName() string {
	if r.Rename != "" {
		return r.Rename
	}
	return r.Name
}

func (r *SetRequest) paramFieldUpdate() bool {
	return r.Description != nil || r.Secret != nil || r.Type != nil || r.Rename != ""
}

func (r *SetRequest) valueFieldUpdate() bool {
	return r.Value != nil || r.FQN != nil || r.JMESPath != nil || r.Evaluate != nil
}

// SetResult reports what Set changed.
type SetResult struct {
	Action      string
	Name        string
	Project     string
	Environment string
}

// Message is the success line printed by the set command.
func (r SetResult) Message() string {
	env := ""
	if r.Environment != "" {
		env = fmt.Sprintf(" for environment '%s'", r.Environment)
	}
	return fmt.Sprintf("Successfully %s parameter '%s' in project '%s'%s.", r.Action, r.Name, r.Project, env)
}

// Setter creates and updates parameters, their rules and values.
type Setter struct {
	client    api.ParamAPI
	assembler *Assembler
}

// NewSetter creates a setter.
func NewSetter(client api.ParamAPI, assembler *Assembler) *Setter {
	return &Setter{client: client, assembler: assembler}
}

// Set applies req in scope. Rule deletions run before rule writes. A
// parameter created by this call is deleted again when a later step fails.
func (s *Setter) Set(ctx context.Context, scope *resolve.Scope, req SetRequest) (*SetResult, error) {
	if err := req.CheckSources(); err != nil {
		return nil, err
	}

	original, exists, err := s.assembler.Detail(ctx, scope.ProjectID, req.Name, Options{
		EnvironmentID:  scope.EnvironmentID,
		EnvironmentURL: scope.EnvironmentURL,
		MaskSecrets:    true,
		IncludeValues:  true,
	})
	if err != nil {
		return nil, err
	}

	result := &SetResult{Action: ActionUpdated, Name: req.finalName(), Project: scope.ProjectName}
	var target Detail
	added := false

	if exists {
		if !strings.Contains(original.ProjectURL, scope.ProjectID) {
			return nil, dserrors.Exit(dserrors.ExitParamSetOtherProject,
				"Parameter '%s' must be set from project '%s' -- it is not part of project '%s'",
				req.Name, sourceProject(original), scope.ProjectName)
		}
		target = *original
		if req.paramFieldUpdate() {
			body := api.ParameterWrite{Description: req.Description, Secret: req.Secret, Type: req.Type}
			if req.Rename != "" {
				body.Name = req.Rename
			}
			if _, err := s.client.UpdateParameter(ctx, scope.ProjectID, original.ID, body); err != nil {
				return nil, err
			}
		}
	} else {
		created, err := s.client.CreateParameter(ctx, scope.ProjectID, api.ParameterWrite{
			Name:        req.Name,
			Description: req.Description,
			Secret:      req.Secret,
			Type:        req.Type,
		})
		if err != nil {
			return nil, err
		}
		added = true
		result.Action = ActionCreated
		target = Detail{ID: created.ID, Name: created.Name, Secret: created.Secret, Rules: created.Rules}
	}

	rollback := func() {
		if added {
			_ = s.client.DeleteParameter(ctx, scope.ProjectID, target.ID)
		}
	}

	if msgs := s.deleteRules(ctx, scope.ProjectID, &target, req.DeleteRules); len(msgs) > 0 {
		rollback()
		return nil, dserrors.ExitError{Code: dserrors.ExitRuleDeleteFailed, Message: strings.Join(msgs, "\n")}
	}
	if msgs := s.writeRules(ctx, scope.ProjectID, &target, req.Rules, req.DeleteRules); len(msgs) > 0 {
		rollback()
		return nil, dserrors.ExitError{Code: dserrors.ExitRuleSetFailed, Message: strings.Join(msgs, "\n")}
	}

	if req.valueFieldUpdate() {
		result.Environment = scope.EnvironmentName
		body := api.ValueWrite{
			Environment:    scope.EnvironmentURL,
			InternalValue:  req.Value,
			ExternalFQN:    req.FQN,
			ExternalFilter: req.JMESPath,
			Interpolated:   req.Evaluate,
		}
		if req.FQN != nil || req.JMESPath != nil {
			body.External = api.BoolPtr(true)
		}
		if target.Override && target.ValueID != "" {
			if _, err := s.client.UpdateValue(ctx, scope.ProjectID, target.ID, target.ValueID, body); err != nil {
				return nil, err
			}
		} else {
			result.Action = ActionSet
			if _, err := s.client.CreateValue(ctx, scope.ProjectID, target.ID, body); err != nil {
				rollback()
				return nil, err
			}
		}
	}
	return result, nil
}

// deleteRules removes the selected rule types that exist.
func (s *Setter) deleteRules(ctx context.Context, projectID string, d *Detail, deletes map[string]bool) []string {
	var msgs []string
	for _, ruleType := range api.RuleTypes {
		if !deletes[ruleType] {
			continue
		}
		id := ruleID(d.Rules, ruleType)
		if id == "" {
			continue
		}
		if err := s.client.DeleteRule(ctx, projectID, d.ID, id); err != nil {
			msgs = append(msgs, ruleError(d.Name, ruleType, err))
		}
	}
	return msgs
}

// writeRules creates a rule that does not exist or was just deleted, and
// updates the constraint of one that does.
func (s *Setter) writeRules(ctx context.Context, projectID string, d *Detail, rules map[string]string, deleted map[string]bool) []string {
	var msgs []string
	for _, ruleType := range api.RuleTypes {
		constraint, ok := rules[ruleType]
		if !ok {
			continue
		}
		c := constraint
		id := ruleID(d.Rules, ruleType)
		var err error
		if id == "" || deleted[ruleType] {
			_, err = s.client.CreateRule(ctx, projectID, d.ID, api.RuleWrite{Type: ruleType, Constraint: &c})
		} else {
			_, err = s.client.UpdateRule(ctx, projectID, d.ID, id, api.RuleWrite{Constraint: &c})
		}
		if err != nil {
			msgs = append(msgs, ruleError(d.Name, ruleType, err))
		}
	}
	return msgs
}

func ruleID(rules []api.Rule, ruleType string) string {
	for _, r := range rules {
		if r.Type == ruleType {
			return r.ID
		}
	}
	return ""
}

func ruleError(name, ruleType string, err error) string {
	return fmt.Sprintf("Rule %s for '%s': %v", api.RuleDisplayName(ruleType), name, err)
}

func sourceProject(d *Detail) string {
	if d.ProjectName != "" {
		return d.ProjectName
	}
	return api.LastFromURL(d.ProjectURL)
}
