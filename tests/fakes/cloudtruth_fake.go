package fakes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/systmms/cloudtruth/internal/api"
)

const (
	fakeBaseURL = "https://fake.cloudtruth.test/api/v1/"
	masked      = "*****"
)

type valueVersion struct {
	value   api.Value
	at      time.Time
	deleted bool
}

type fakeParam struct {
	param  api.Parameter
	values map[string][]valueVersion // env URL -> history
}

type templateVersion struct {
	body string
	at   time.Time
}

type fakeTemplate struct {
	tmpl    api.Template
	history []templateVersion
	deleted bool
}

// FakeCloudTruth is an in-memory implementation of api.API.
//
// It keeps the server semantics the commands depend on: environment value
// inheritance, project parameter inheritance, value history for as-of reads,
// rule validation on writes and mustache template evaluation. Every mutation
// advances a fake clock by one minute so that history is ordered.
//
// Example usage:
//
//	fake := fakes.NewFakeCloudTruth().
//	    WithEnvironment("production", "default").
//	    WithProject("app", "").
//	    WithParameter("app", "DB_HOST", fakes.ParamOpts{}).
//	    WithValue("app", "DB_HOST", "default", "localhost")
type FakeCloudTruth struct {
	mu sync.Mutex

	now time.Time
	seq int

	envs      []api.Environment
	tags      map[string][]api.Tag
	projects  []api.Project
	params    map[string][]*fakeParam
	templates map[string][]*fakeTemplate
	named     map[string][]api.Named
	pushes    map[string][]api.TaskStep

	failOn    map[string]error
	callCount map[string]int
	calls     []string
}

var _ api.API = (*FakeCloudTruth)(nil)

// ParamOpts configures a parameter created through WithParameter.
type ParamOpts struct {
	Description string
	Secret      bool
	Type        string
}

// NewFakeCloudTruth creates a fake holding only the "default" environment.
func NewFakeCloudTruth() *FakeCloudTruth {
	f := &FakeCloudTruth{
		now:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		tags:      make(map[string][]api.Tag),
		params:    make(map[string][]*fakeParam),
		templates: make(map[string][]*fakeTemplate),
		named:     make(map[string][]api.Named),
		pushes:    make(map[string][]api.TaskStep),
		failOn:    make(map[string]error),
		callCount: make(map[string]int),
	}
	f.addEnvironment("default", "", "")
	return f
}

// ---- builders ---------------------------------------------------------------

// WithEnvironment adds an environment under parent.
func (f *FakeCloudTruth) WithEnvironment(name, parent string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	parentURL := ""
	if parent != "" {
		parentURL = f.envByName(parent).URL
	}
	f.addEnvironment(name, parentURL, "")
	return f
}

// WithProject adds a project, optionally depending on parent.
func (f *FakeCloudTruth) WithProject(name, parent string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	var dependsOn *string
	if parent != "" {
		p := f.projectByName(parent).URL
		dependsOn = &p
	}
	f.addProject(name, "", dependsOn)
	return f
}

// WithParameter adds a parameter to project.
func (f *FakeCloudTruth) WithParameter(project, name string, opts ParamOpts) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	proj := f.projectByName(project)
	typ := opts.Type
	if typ == "" {
		typ = api.TypeString
	}
	f.addParameter(proj, api.ParameterWrite{
		Name:        name,
		Description: &opts.Description,
		Secret:      &opts.Secret,
		Type:        &typ,
	})
	return f
}

// WithValue sets an internal value for a parameter in env.
func (f *FakeCloudTruth) WithValue(project, param, env, value string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp := f.paramByName(f.projectByName(project).ID, param)
	f.writeValue(fp, f.envByName(env).URL, "", api.ValueWrite{InternalValue: &value})
	return f
}

// WithInterpolatedValue sets a value whose body references other parameters.
func (f *FakeCloudTruth) WithInterpolatedValue(project, param, env, value string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp := f.paramByName(f.projectByName(project).ID, param)
	yes := true
	f.writeValue(fp, f.envByName(env).URL, "", api.ValueWrite{InternalValue: &value, Interpolated: &yes})
	return f
}

// WithExternalValue sets an external reference. resolved is what the server
// would have fetched; a non-empty errMsg marks the fetch as failed.
func (f *FakeCloudTruth) WithExternalValue(project, param, env, fqn, jmes, resolved, errMsg string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp := f.paramByName(f.projectByName(project).ID, param)
	yes := true
	f.writeValue(fp, f.envByName(env).URL, "", api.ValueWrite{External: &yes, ExternalFQN: &fqn, ExternalFilter: &jmes})
	versions := fp.values[f.envByName(env).URL]
	v := &versions[len(versions)-1].value
	v.Value = &resolved
	if errMsg != "" {
		v.ExternalError = &errMsg
		v.Value = nil
	}
	return f
}

// WithRule adds a rule to a parameter without validation.
func (f *FakeCloudTruth) WithRule(project, param, ruleType, constraint string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp := f.paramByName(f.projectByName(project).ID, param)
	f.addRule(fp, ruleType, constraint)
	return f
}

// WithTemplate adds a template to project.
func (f *FakeCloudTruth) WithTemplate(project, name, body string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addTemplate(f.projectByName(project), name, "", body)
	return f
}

// WithTag adds a tag to env. An empty timestamp uses the current fake time.
func (f *FakeCloudTruth) WithTag(env, name, timestamp string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.envByName(env)
	f.addTag(e.ID, api.TagWrite{Name: name, Timestamp: timestamp})
	return f
}

// WithNamed adds a user, type or integration.
func (f *FakeCloudTruth) WithNamed(collection, name string) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID(collection)
	f.named[collection] = append(f.named[collection], api.Named{
		ID:   id,
		Name: name,
		URL:  fakeBaseURL + collection + "/" + id + "/",
	})
	return f
}

// WithPushStep records a push step against a parameter.
func (f *FakeCloudTruth) WithPushStep(project, param string, step api.TaskStep) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp := f.paramByName(f.projectByName(project).ID, param)
	step.Parameter = fp.param.URL
	step.ParameterName = fp.param.Name
	f.pushes[fp.param.ID] = append(f.pushes[fp.param.ID], step)
	return f
}

// WithError makes every call of method fail with err.
func (f *FakeCloudTruth) WithError(method string, err error) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[method] = err
	return f
}

// Advance moves the fake clock forward.
func (f *FakeCloudTruth) Advance(d time.Duration) *FakeCloudTruth {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f
}

// ---- inspection -------------------------------------------------------------

// Now returns the fake clock formatted as the server would.
func (f *FakeCloudTruth) Now() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return stamp(f.now)
}

// Calls returns the methods invoked so far, in order.
func (f *FakeCloudTruth) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times method was invoked.
func (f *FakeCloudTruth) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount[method]
}

// MutationCount returns the number of create, update and delete calls.
func (f *FakeCloudTruth) MutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, "Create") || strings.HasPrefix(c, "Update") || strings.HasPrefix(c, "Delete") {
			n++
		}
	}
	return n
}

// Environment returns the environment named name.
func (f *FakeCloudTruth) Environment(name string) api.Environment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.envByName(name)
}

// Project returns the project named name.
func (f *FakeCloudTruth) Project(name string) api.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projectByName(name)
}

// HasParameter reports whether project owns a parameter called name.
func (f *FakeCloudTruth) HasParameter(project, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findParam(f.projectByName(project).ID, name) != nil
}

// Parameter returns a copy of a stored parameter.
func (f *FakeCloudTruth) Parameter(project, name string) api.Parameter {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp := f.paramByName(f.projectByName(project).ID, name)
	p := fp.param
	p.Rules = append([]api.Rule(nil), fp.param.Rules...)
	return p
}

// StoredValue returns the current raw value set directly in env.
func (f *FakeCloudTruth) StoredValue(project, param, env string) (api.Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp := f.paramByName(f.projectByName(project).ID, param)
	return f.valueAt(fp, f.envByName(env).URL, time.Time{})
}

// TemplateBody returns the current body of a template.
func (f *FakeCloudTruth) TemplateBody(project, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := f.findTemplate(f.projectByName(project).ID, name)
	if ft == nil {
		return "", false
	}
	return *ft.tmpl.Body, true
}

// ---- internals --------------------------------------------------------------

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

func (f *FakeCloudTruth) tick() time.Time {
	f.now = f.now.Add(time.Minute)
	return f.now
}

func (f *FakeCloudTruth) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

func (f *FakeCloudTruth) record(method string) error {
	f.calls = append(f.calls, method)
	f.callCount[method]++
	return f.failOn[method]
}

func notFound() error {
	return &api.Error{Kind: api.KindNotFound, Status: http.StatusNotFound, Body: `{"detail":"Not found."}`}
}

func conflict(msg string) error {
	body, _ := json.Marshal(map[string]string{"detail": msg})
	return &api.Error{Kind: api.KindConflict, Status: http.StatusConflict, Body: string(body)}
}

func validation(msg string) error {
	body, _ := json.Marshal(map[string][]string{"non_field_errors": {msg}})
	return &api.Error{Kind: api.KindValidation, Status: http.StatusBadRequest, Body: string(body)}
}

func (f *FakeCloudTruth) envByName(name string) api.Environment {
	for _, e := range f.envs {
		if e.Name == name {
			return e
		}
	}
	panic(fmt.Sprintf("fake: unknown environment %q", name))
}

func (f *FakeCloudTruth) envIndex(id string) int {
	for i, e := range f.envs {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeCloudTruth) envByURL(url string) (api.Environment, bool) {
	for _, e := range f.envs {
		if e.URL == url {
			return e, true
		}
	}
	return api.Environment{}, false
}

func (f *FakeCloudTruth) projectByName(name string) api.Project {
	for _, p := range f.projects {
		if p.Name == name {
			return p
		}
	}
	panic(fmt.Sprintf("fake: unknown project %q", name))
}

func (f *FakeCloudTruth) projectIndex(id string) int {
	for i, p := range f.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeCloudTruth) findParam(projectID, name string) *fakeParam {
	for _, fp := range f.params[projectID] {
		if fp.param.Name == name {
			return fp
		}
	}
	return nil
}

func (f *FakeCloudTruth) paramByName(projectID, name string) *fakeParam {
	fp := f.findParam(projectID, name)
	if fp == nil {
		panic(fmt.Sprintf("fake: unknown parameter %q", name))
	}
	return fp
}

func (f *FakeCloudTruth) paramByID(projectID, id string) *fakeParam {
	for _, fp := range f.params[projectID] {
		if fp.param.ID == id {
			return fp
		}
	}
	return nil
}

func (f *FakeCloudTruth) findTemplate(projectID, name string) *fakeTemplate {
	for _, ft := range f.templates[projectID] {
		if ft.tmpl.Name == name && !ft.deleted {
			return ft
		}
	}
	return nil
}

func (f *FakeCloudTruth) addEnvironment(name, parentURL, description string) api.Environment {
	id := f.nextID("env")
	at := stamp(f.tick())
	env := api.Environment{
		URL:         fakeBaseURL + "environments/" + id + "/",
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   at,
		ModifiedAt:  at,
	}
	if parentURL != "" {
		p := parentURL
		env.Parent = &p
	}
	f.envs = append(f.envs, env)
	return env
}

func (f *FakeCloudTruth) addProject(name, description string, dependsOn *string) api.Project {
	id := f.nextID("proj")
	at := stamp(f.tick())
	proj := api.Project{
		URL:         fakeBaseURL + "projects/" + id + "/",
		ID:          id,
		Name:        name,
		Description: description,
		DependsOn:   dependsOn,
		CreatedAt:   at,
		ModifiedAt:  at,
	}
	f.projects = append(f.projects, proj)
	return proj
}

func (f *FakeCloudTruth) addParameter(proj api.Project, body api.ParameterWrite) *fakeParam {
	id := f.nextID("param")
	at := stamp(f.tick())
	p := api.Parameter{
		URL:         proj.URL + "parameters/" + id + "/",
		ID:          id,
		Name:        body.Name,
		Type:        api.TypeString,
		Project:     proj.URL,
		ProjectName: proj.Name,
		CreatedAt:   at,
		ModifiedAt:  at,
	}
	if body.Description != nil {
		p.Description = *body.Description
	}
	if body.Secret != nil {
		p.Secret = *body.Secret
	}
	if body.Type != nil {
		p.Type = *body.Type
	}
	fp := &fakeParam{param: p, values: make(map[string][]valueVersion)}
	f.params[proj.ID] = append(f.params[proj.ID], fp)
	return fp
}

func (f *FakeCloudTruth) addRule(fp *fakeParam, ruleType, constraint string) api.Rule {
	id := f.nextID("rule")
	at := stamp(f.tick())
	rule := api.Rule{
		URL:        fp.param.URL + "rules/" + id + "/",
		ID:         id,
		Parameter:  fp.param.URL,
		Type:       ruleType,
		Constraint: constraint,
		CreatedAt:  at,
		ModifiedAt: at,
	}
	fp.param.Rules = append(fp.param.Rules, rule)
	return rule
}

func (f *FakeCloudTruth) addTemplate(proj api.Project, name, description, body string) *fakeTemplate {
	id := f.nextID("tmpl")
	now := f.tick()
	b := body
	ft := &fakeTemplate{
		tmpl: api.Template{
			URL:         proj.URL + "templates/" + id + "/",
			ID:          id,
			Name:        name,
			Description: description,
			Body:        &b,
			CreatedAt:   stamp(now),
			ModifiedAt:  stamp(now),
		},
		history: []templateVersion{{body: body, at: now}},
	}
	f.templates[proj.ID] = append(f.templates[proj.ID], ft)
	return ft
}

func (f *FakeCloudTruth) addTag(envID string, body api.TagWrite) api.Tag {
	id := f.nextID("tag")
	ts := body.Timestamp
	if ts == "" {
		ts = stamp(f.tick())
	}
	desc := ""
	if body.Description != nil {
		desc = *body.Description
	}
	tag := api.Tag{
		URL:         fakeBaseURL + "environments/" + envID + "/tags/" + id + "/",
		ID:          id,
		Name:        body.Name,
		Description: desc,
		Timestamp:   ts,
		Usage:       &api.TagUsage{},
	}
	f.tags[envID] = append(f.tags[envID], tag)
	return tag
}

// writeValue appends a new version for envURL. valueID is empty on create.
func (f *FakeCloudTruth) writeValue(fp *fakeParam, envURL, valueID string, body api.ValueWrite) api.Value {
	now := f.tick()
	var v api.Value
	if current, ok := f.valueAt(fp, envURL, time.Time{}); ok {
		v = current
	} else {
		id := valueID
		if id == "" {
			id = f.nextID("val")
		}
		env, _ := f.envByURL(envURL)
		v = api.Value{
			URL:             fp.param.URL + "values/" + id + "/",
			ID:              id,
			Environment:     envURL,
			EnvironmentName: env.Name,
			Parameter:       fp.param.URL,
			CreatedAt:       stamp(now),
		}
	}
	if body.External != nil {
		v.External = *body.External
	}
	if body.ExternalFQN != nil {
		v.ExternalFQN = *body.ExternalFQN
	}
	if body.ExternalFilter != nil {
		v.ExternalFilter = *body.ExternalFilter
	}
	if body.InternalValue != nil {
		raw := *body.InternalValue
		v.InternalValue = &raw
		v.Value = &raw
		v.External = false
		v.ExternalFQN = ""
		v.ExternalFilter = ""
	}
	if body.Interpolated != nil {
		v.Interpolated = *body.Interpolated
	}
	if v.External {
		v.InternalValue = nil
		resolved := fmt.Sprintf("%s%s", v.ExternalFQN, filterSuffix(v.ExternalFilter))
		v.Value = &resolved
		v.ExternalError = nil
	}
	secret := fp.param.Secret
	v.Secret = &secret
	v.ModifiedAt = stamp(now)
	fp.values[envURL] = append(fp.values[envURL], valueVersion{value: v, at: now})
	return v
}

func filterSuffix(jmes string) string {
	if jmes == "" {
		return ""
	}
	return "#" + jmes
}

// valueAt returns the value set directly in envURL at the given time. The zero
// time means now.
func (f *FakeCloudTruth) valueAt(fp *fakeParam, envURL string, at time.Time) (api.Value, bool) {
	versions := fp.values[envURL]
	for i := len(versions) - 1; i >= 0; i-- {
		if !at.IsZero() && versions[i].at.After(at) {
			continue
		}
		if versions[i].deleted {
			return api.Value{}, false
		}
		return versions[i].value, true
	}
	return api.Value{}, false
}

// inheritedValue walks from envURL up through its ancestors.
func (f *FakeCloudTruth) inheritedValue(fp *fakeParam, envURL string, at time.Time) (api.Value, bool) {
	seen := make(map[string]bool)
	for url := envURL; url != "" && !seen[url]; {
		seen[url] = true
		if v, ok := f.valueAt(fp, url, at); ok {
			return v, true
		}
		env, ok := f.envByURL(url)
		if !ok {
			break
		}
		url = env.ParentURL()
	}
	return api.Value{}, false
}

func parseAsOf(asOf string) (time.Time, error) {
	if asOf == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, asOf)
	if err != nil {
		return time.Time{}, validation(fmt.Sprintf("Invalid as_of value: %s", asOf))
	}
	return t, nil
}

// ancestorProjects returns projectID followed by the ids of its ancestors.
func (f *FakeCloudTruth) ancestorProjects(projectID string) []string {
	ids := []string{projectID}
	seen := map[string]bool{projectID: true}
	idx := f.projectIndex(projectID)
	for idx >= 0 {
		parent := f.projects[idx].ParentURL()
		if parent == "" {
			break
		}
		next := -1
		for i, p := range f.projects {
			if p.URL == parent && !seen[p.ID] {
				next = i
			}
		}
		if next < 0 {
			break
		}
		seen[f.projects[next].ID] = true
		ids = append(ids, f.projects[next].ID)
		idx = next
	}
	return ids
}

var mustache = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

func paramRef(ref string) string {
	return strings.TrimPrefix(ref, "cloudtruth.parameters.")
}

// evaluate substitutes parameter references. Missing references are returned
// as lookup errors.
func (f *FakeCloudTruth) evaluate(projectID, body, envURL string, at time.Time, mask bool) (string, []api.TemplateLookupErrorEntry, bool) {
	var lookupErrs []api.TemplateLookupErrorEntry
	hasSecret := false
	out := mustache.ReplaceAllStringFunc(body, func(m string) string {
		name := paramRef(mustache.FindStringSubmatch(m)[1])
		var fp *fakeParam
		for _, pid := range f.ancestorProjects(projectID) {
			if fp = f.findParam(pid, name); fp != nil {
				break
			}
		}
		if fp == nil {
			lookupErrs = append(lookupErrs, api.TemplateLookupErrorEntry{
				ParameterName: name, ErrorCode: "not_found", ErrorDetail: "parameter not found",
			})
			return m
		}
		v, ok := f.inheritedValue(fp, envURL, at)
		if !ok || v.Value == nil {
			lookupErrs = append(lookupErrs, api.TemplateLookupErrorEntry{
				ParameterID: fp.param.ID, ParameterName: name, ErrorCode: "no_value", ErrorDetail: "no value set",
			})
			return m
		}
		if fp.param.Secret {
			hasSecret = true
			if mask {
				return masked
			}
		}
		return *v.Value
	})
	return out, lookupErrs, hasSecret
}

func lookupError(entries []api.TemplateLookupErrorEntry) error {
	body, _ := json.Marshal(api.TemplateLookupError{Detail: entries})
	return &api.Error{Kind: api.KindValidation, Status: http.StatusUnprocessableEntity, Body: string(body)}
}

// checkValue applies the parameter type and rules to a new value.
func checkValue(fp *fakeParam, value string) error {
	switch fp.param.Type {
	case api.TypeInteger:
		if _, err := strconv.Atoi(value); err != nil {
			return validation(fmt.Sprintf("Value is not of type integer: %s", value))
		}
	case api.TypeBool:
		if value != "true" && value != "false" {
			return validation(fmt.Sprintf("Value is not of type boolean: %s", value))
		}
	}
	for _, rule := range fp.param.Rules {
		switch rule.Type {
		case api.RuleMax, api.RuleMin:
			n, err := strconv.Atoi(value)
			limit, _ := strconv.Atoi(rule.Constraint)
			if err != nil {
				continue
			}
			if (rule.Type == api.RuleMax && n > limit) || (rule.Type == api.RuleMin && n < limit) {
				return validation(fmt.Sprintf("Rule %s violated: %s", rule.Type, rule.Constraint))
			}
		case api.RuleMaxLen, api.RuleMinLen:
			limit, _ := strconv.Atoi(rule.Constraint)
			if (rule.Type == api.RuleMaxLen && len(value) > limit) || (rule.Type == api.RuleMinLen && len(value) < limit) {
				return validation(fmt.Sprintf("Rule %s violated: %s", rule.Type, rule.Constraint))
			}
		case api.RuleRegex:
			re, err := regexp.Compile(rule.Constraint)
			if err == nil && !re.MatchString(value) {
				return validation(fmt.Sprintf("Rule regex violated: %s", rule.Constraint))
			}
		}
	}
	return nil
}

func checkRule(fp *fakeParam, ruleType string) error {
	switch ruleType {
	case api.RuleMax, api.RuleMin:
		if fp.param.Type != api.TypeInteger {
			return validation(fmt.Sprintf("Rule %s is not valid for type %s", ruleType, fp.param.Type))
		}
	case api.RuleMaxLen, api.RuleMinLen, api.RuleRegex:
		if fp.param.Type != api.TypeString {
			return validation(fmt.Sprintf("Rule %s is not valid for type %s", ruleType, fp.param.Type))
		}
	default:
		return validation(fmt.Sprintf("Unknown rule type %s", ruleType))
	}
	return nil
}

// ---- EnvAPI -----------------------------------------------------------------

func (f *FakeCloudTruth) ListEnvironments(ctx context.Context) ([]api.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListEnvironments"); err != nil {
		return nil, err
	}
	return append([]api.Environment(nil), f.envs...), nil
}

func (f *FakeCloudTruth) CreateEnvironment(ctx context.Context, body api.EnvironmentCreate) (*api.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateEnvironment"); err != nil {
		return nil, err
	}
	for _, e := range f.envs {
		if e.Name == body.Name {
			return nil, conflict(fmt.Sprintf("Environment with name '%s' already exists", body.Name))
		}
	}
	if _, ok := f.envByURL(body.Parent); !ok {
		return nil, validation("Invalid parent environment")
	}
	desc := ""
	if body.Description != nil {
		desc = *body.Description
	}
	env := f.addEnvironment(body.Name, body.Parent, desc)
	return &env, nil
}

func (f *FakeCloudTruth) UpdateEnvironment(ctx context.Context, envID string, body api.EnvironmentUpdate) (*api.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateEnvironment"); err != nil {
		return nil, err
	}
	i := f.envIndex(envID)
	if i < 0 {
		return nil, notFound()
	}
	if body.Name != "" {
		f.envs[i].Name = body.Name
	}
	if body.Description != nil {
		f.envs[i].Description = *body.Description
	}
	f.envs[i].ModifiedAt = stamp(f.tick())
	env := f.envs[i]
	return &env, nil
}

func (f *FakeCloudTruth) DeleteEnvironment(ctx context.Context, envID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteEnvironment"); err != nil {
		return err
	}
	i := f.envIndex(envID)
	if i < 0 {
		return notFound()
	}
	for _, e := range f.envs {
		if e.ParentURL() == f.envs[i].URL {
			return conflict("Cannot delete an environment that has children")
		}
	}
	f.envs = append(f.envs[:i], f.envs[i+1:]...)
	return nil
}

func (f *FakeCloudTruth) ListTags(ctx context.Context, envID, name string) ([]api.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListTags"); err != nil {
		return nil, err
	}
	if f.envIndex(envID) < 0 {
		return nil, notFound()
	}
	var out []api.Tag
	for _, t := range f.tags[envID] {
		if name == "" || t.Name == name {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *FakeCloudTruth) CreateTag(ctx context.Context, envID string, body api.TagWrite) (*api.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateTag"); err != nil {
		return nil, err
	}
	if f.envIndex(envID) < 0 {
		return nil, notFound()
	}
	for _, t := range f.tags[envID] {
		if t.Name == body.Name {
			return nil, conflict(fmt.Sprintf("Tag '%s' already exists", body.Name))
		}
	}
	tag := f.addTag(envID, body)
	return &tag, nil
}

func (f *FakeCloudTruth) UpdateTag(ctx context.Context, envID, tagID string, body api.TagWrite) (*api.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateTag"); err != nil {
		return nil, err
	}
	for i := range f.tags[envID] {
		t := &f.tags[envID][i]
		if t.ID != tagID {
			continue
		}
		if body.Name != "" {
			t.Name = body.Name
		}
		if body.Description != nil {
			t.Description = *body.Description
		}
		if body.Timestamp != "" {
			t.Timestamp = body.Timestamp
		}
		out := *t
		return &out, nil
	}
	return nil, notFound()
}

func (f *FakeCloudTruth) DeleteTag(ctx context.Context, envID, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteTag"); err != nil {
		return err
	}
	tags := f.tags[envID]
	for i := range tags {
		if tags[i].ID == tagID {
			f.tags[envID] = append(tags[:i], tags[i+1:]...)
			return nil
		}
	}
	return notFound()
}

// ---- ProjAPI ----------------------------------------------------------------

func (f *FakeCloudTruth) ListProjects(ctx context.Context, name string) ([]api.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListProjects"); err != nil {
		return nil, err
	}
	var out []api.Project
	for _, p := range f.projects {
		if name != "" && p.Name != name {
			continue
		}
		p.Dependents = nil
		for _, child := range f.projects {
			if child.ParentURL() == p.URL {
				p.Dependents = append(p.Dependents, child.URL)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *FakeCloudTruth) CreateProject(ctx context.Context, body api.ProjectWrite) (*api.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateProject"); err != nil {
		return nil, err
	}
	for _, p := range f.projects {
		if p.Name == body.Name {
			return nil, conflict(fmt.Sprintf("Project with name '%s' already exists", body.Name))
		}
	}
	desc := ""
	if body.Description != nil {
		desc = *body.Description
	}
	proj := f.addProject(body.Name, desc, body.DependsOn)
	return &proj, nil
}

func (f *FakeCloudTruth) UpdateProject(ctx context.Context, projectID string, body api.ProjectWrite) (*api.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateProject"); err != nil {
		return nil, err
	}
	i := f.projectIndex(projectID)
	if i < 0 {
		return nil, notFound()
	}
	if body.Name != "" {
		f.projects[i].Name = body.Name
	}
	if body.Description != nil {
		f.projects[i].Description = *body.Description
	}
	if body.DependsOn != nil {
		if *body.DependsOn == "" {
			f.projects[i].DependsOn = nil
		} else {
			p := *body.DependsOn
			f.projects[i].DependsOn = &p
		}
	}
	f.projects[i].ModifiedAt = stamp(f.tick())
	proj := f.projects[i]
	return &proj, nil
}

func (f *FakeCloudTruth) DeleteProject(ctx context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteProject"); err != nil {
		return err
	}
	i := f.projectIndex(projectID)
	if i < 0 {
		return notFound()
	}
	for _, p := range f.projects {
		if p.ParentURL() == f.projects[i].URL {
			return conflict("Cannot delete a project that has dependents")
		}
	}
	f.projects = append(f.projects[:i], f.projects[i+1:]...)
	delete(f.params, projectID)
	delete(f.templates, projectID)
	return nil
}

// ---- ParamAPI ---------------------------------------------------------------

func (f *FakeCloudTruth) ListParameters(ctx context.Context, projectID string, q api.ParameterQuery) ([]api.Parameter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListParameters"); err != nil {
		return nil, err
	}
	return f.listParameters(projectID, q)
}

func (f *FakeCloudTruth) listParameters(projectID string, q api.ParameterQuery) ([]api.Parameter, error) {
	if f.projectIndex(projectID) < 0 {
		return nil, notFound()
	}
	at, err := parseAsOf(q.AsOf)
	if err != nil {
		return nil, err
	}
	var envURLs []string
	if q.Environment != "" {
		i := f.envIndex(q.Environment)
		if i < 0 {
			return nil, notFound()
		}
		envURLs = []string{f.envs[i].URL}
	} else {
		for _, e := range f.envs {
			envURLs = append(envURLs, e.URL)
		}
	}

	var out []api.Parameter
	for _, pid := range f.ancestorProjects(projectID) {
		for _, fp := range f.params[pid] {
			if q.Name != "" && fp.param.Name != q.Name {
				continue
			}
			if !at.IsZero() && fp.param.CreatedAt > stamp(at) {
				continue
			}
			p := fp.param
			p.Rules = append([]api.Rule(nil), fp.param.Rules...)
			p.Values = make(map[string]*api.Value)
			if q.Values {
				for _, url := range envURLs {
					v, ok := f.inheritedValue(fp, url, at)
					if !ok {
						p.Values[url] = nil
						continue
					}
					f.present(pid, fp, &v, url, at, q)
					p.Values[url] = &v
				}
			}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// present applies evaluation and masking to a value copy.
func (f *FakeCloudTruth) present(projectID string, fp *fakeParam, v *api.Value, envURL string, at time.Time, q api.ParameterQuery) {
	if q.Evaluate && v.Interpolated && v.InternalValue != nil {
		evaluated, errs, _ := f.evaluate(projectID, *v.InternalValue, envURL, at, q.MaskSecrets)
		if len(errs) == 0 {
			v.Value = &evaluated
			v.Evaluated = true
		} else {
			msg := errs[0].ErrorDetail
			v.ExternalError = &msg
		}
	}
	if q.MaskSecrets && fp.param.Secret {
		m := masked
		if v.Value != nil {
			v.Value = &m
		}
		if v.InternalValue != nil {
			v.InternalValue = &m
		}
	}
}

func (f *FakeCloudTruth) CreateParameter(ctx context.Context, projectID string, body api.ParameterWrite) (*api.Parameter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateParameter"); err != nil {
		return nil, err
	}
	i := f.projectIndex(projectID)
	if i < 0 {
		return nil, notFound()
	}
	if f.findParam(projectID, body.Name) != nil {
		return nil, conflict(fmt.Sprintf("Parameter with name '%s' already exists", body.Name))
	}
	fp := f.addParameter(f.projects[i], body)
	p := fp.param
	p.Values = map[string]*api.Value{}
	return &p, nil
}

func (f *FakeCloudTruth) UpdateParameter(ctx context.Context, projectID, paramID string, body api.ParameterWrite) (*api.Parameter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateParameter"); err != nil {
		return nil, err
	}
	fp := f.paramByID(projectID, paramID)
	if fp == nil {
		return nil, notFound()
	}
	if body.Name != "" {
		fp.param.Name = body.Name
	}
	if body.Description != nil {
		fp.param.Description = *body.Description
	}
	if body.Secret != nil {
		fp.param.Secret = *body.Secret
	}
	if body.Type != nil {
		fp.param.Type = *body.Type
	}
	fp.param.ModifiedAt = stamp(f.tick())
	p := fp.param
	return &p, nil
}

func (f *FakeCloudTruth) DeleteParameter(ctx context.Context, projectID, paramID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteParameter"); err != nil {
		return err
	}
	params := f.params[projectID]
	for i := range params {
		if params[i].param.ID == paramID {
			f.params[projectID] = append(params[:i], params[i+1:]...)
			return nil
		}
	}
	return notFound()
}

func (f *FakeCloudTruth) CreateRule(ctx context.Context, projectID, paramID string, body api.RuleWrite) (*api.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRule"); err != nil {
		return nil, err
	}
	fp := f.paramByID(projectID, paramID)
	if fp == nil {
		return nil, notFound()
	}
	if err := checkRule(fp, body.Type); err != nil {
		return nil, err
	}
	for _, r := range fp.param.Rules {
		if r.Type == body.Type {
			return nil, conflict(fmt.Sprintf("Rule %s already exists", body.Type))
		}
	}
	constraint := ""
	if body.Constraint != nil {
		constraint = *body.Constraint
	}
	rule := f.addRule(fp, body.Type, constraint)
	return &rule, nil
}

func (f *FakeCloudTruth) UpdateRule(ctx context.Context, projectID, paramID, ruleID string, body api.RuleWrite) (*api.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateRule"); err != nil {
		return nil, err
	}
	fp := f.paramByID(projectID, paramID)
	if fp == nil {
		return nil, notFound()
	}
	for i := range fp.param.Rules {
		r := &fp.param.Rules[i]
		if r.ID != ruleID {
			continue
		}
		if body.Constraint != nil {
			r.Constraint = *body.Constraint
		}
		r.ModifiedAt = stamp(f.tick())
		out := *r
		return &out, nil
	}
	return nil, notFound()
}

func (f *FakeCloudTruth) DeleteRule(ctx context.Context, projectID, paramID, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteRule"); err != nil {
		return err
	}
	fp := f.paramByID(projectID, paramID)
	if fp == nil {
		return notFound()
	}
	for i := range fp.param.Rules {
		if fp.param.Rules[i].ID == ruleID {
			fp.param.Rules = append(fp.param.Rules[:i], fp.param.Rules[i+1:]...)
			return nil
		}
	}
	return notFound()
}

func (f *FakeCloudTruth) CreateValue(ctx context.Context, projectID, paramID string, body api.ValueWrite) (*api.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateValue"); err != nil {
		return nil, err
	}
	fp := f.paramByID(projectID, paramID)
	if fp == nil {
		return nil, notFound()
	}
	if _, ok := f.envByURL(body.Environment); !ok {
		return nil, validation("Invalid environment")
	}
	if _, ok := f.valueAt(fp, body.Environment, time.Time{}); ok {
		return nil, conflict("Value already exists for this environment")
	}
	if body.InternalValue != nil {
		if err := checkValue(fp, *body.InternalValue); err != nil {
			return nil, err
		}
	}
	v := f.writeValue(fp, body.Environment, "", body)
	return &v, nil
}

func (f *FakeCloudTruth) UpdateValue(ctx context.Context, projectID, paramID, valueID string, body api.ValueWrite) (*api.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateValue"); err != nil {
		return nil, err
	}
	fp := f.paramByID(projectID, paramID)
	if fp == nil {
		return nil, notFound()
	}
	for envURL := range fp.values {
		current, ok := f.valueAt(fp, envURL, time.Time{})
		if !ok || current.ID != valueID {
			continue
		}
		if body.InternalValue != nil {
			if err := checkValue(fp, *body.InternalValue); err != nil {
				return nil, err
			}
		}
		v := f.writeValue(fp, envURL, valueID, body)
		return &v, nil
	}
	return nil, notFound()
}

func (f *FakeCloudTruth) DeleteValue(ctx context.Context, projectID, paramID, valueID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteValue"); err != nil {
		return err
	}
	fp := f.paramByID(projectID, paramID)
	if fp == nil {
		return notFound()
	}
	for envURL := range fp.values {
		current, ok := f.valueAt(fp, envURL, time.Time{})
		if ok && current.ID == valueID {
			fp.values[envURL] = append(fp.values[envURL], valueVersion{at: f.tick(), deleted: true})
			return nil
		}
	}
	return notFound()
}

var nonIdentifier = regexp.MustCompile(`[^A-Za-z0-9_]`)

func (f *FakeCloudTruth) ExportParameters(ctx context.Context, projectID string, q api.ExportQuery) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ExportParameters"); err != nil {
		return "", err
	}
	env := q.Environment
	if env == "" {
		env = f.envs[0].ID
	}
	params, err := f.listParameters(projectID, api.ParameterQuery{
		Environment: env, AsOf: q.AsOf, MaskSecrets: q.MaskSecrets, Values: true, Evaluate: true,
	})
	if err != nil {
		return "", err
	}

	var lines []string
	for _, p := range params {
		key := strings.ToUpper(nonIdentifier.ReplaceAllString(p.Name, "_"))
		switch {
		case q.StartsWith != "" && !strings.HasPrefix(key, strings.ToUpper(q.StartsWith)):
			continue
		case q.EndsWith != "" && !strings.HasSuffix(key, strings.ToUpper(q.EndsWith)):
			continue
		case q.Contains != "" && !strings.Contains(key, strings.ToUpper(q.Contains)):
			continue
		}
		value := ""
		for _, v := range p.Values {
			if v != nil && v.Value != nil {
				value = *v.Value
			}
		}
		prefix := ""
		if q.Export {
			prefix = "export "
		}
		switch q.Format {
		case "shell":
			lines = append(lines, fmt.Sprintf("%s%s='%s'", prefix, key, value))
		case "dotenv":
			lines = append(lines, fmt.Sprintf("%s%s=\"%s\"", prefix, key, value))
		default:
			lines = append(lines, fmt.Sprintf("%s=%s", key, value))
		}
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func (f *FakeCloudTruth) ListPushSteps(ctx context.Context, projectID, paramID string) ([]api.TaskStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListPushSteps"); err != nil {
		return nil, err
	}
	return append([]api.TaskStep(nil), f.pushes[paramID]...), nil
}

// ---- TemplateAPI ------------------------------------------------------------

func (f *FakeCloudTruth) presentTemplate(projectID string, ft *fakeTemplate, q api.TemplateQuery) (api.Template, error) {
	at, err := parseAsOf(q.AsOf)
	if err != nil {
		return api.Template{}, err
	}
	t := ft.tmpl
	body := ""
	found := false
	for i := len(ft.history) - 1; i >= 0; i-- {
		if at.IsZero() || !ft.history[i].at.After(at) {
			body = ft.history[i].body
			found = true
			break
		}
	}
	if !found {
		return api.Template{}, notFound()
	}
	envURL := f.envs[0].URL
	if q.Environment != "" {
		i := f.envIndex(q.Environment)
		if i < 0 {
			return api.Template{}, notFound()
		}
		envURL = f.envs[i].URL
	}
	_, _, hasSecret := f.evaluate(projectID, body, envURL, at, false)
	t.HasSecret = hasSecret
	if q.Evaluate {
		evaluated, errs, _ := f.evaluate(projectID, body, envURL, at, q.MaskSecrets)
		if len(errs) > 0 {
			return api.Template{}, lookupError(errs)
		}
		body = evaluated
		t.Evaluated = true
	}
	t.Body = &body
	return t, nil
}

func (f *FakeCloudTruth) ListTemplates(ctx context.Context, projectID string, q api.TemplateQuery) ([]api.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListTemplates"); err != nil {
		return nil, err
	}
	if f.projectIndex(projectID) < 0 {
		return nil, notFound()
	}
	var out []api.Template
	for _, ft := range f.templates[projectID] {
		if ft.deleted || (q.Name != "" && ft.tmpl.Name != q.Name) {
			continue
		}
		t, err := f.presentTemplate(projectID, ft, q)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FakeCloudTruth) GetTemplate(ctx context.Context, projectID, templateID string, q api.TemplateQuery) (*api.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetTemplate"); err != nil {
		return nil, err
	}
	for _, ft := range f.templates[projectID] {
		if ft.tmpl.ID == templateID && !ft.deleted {
			t, err := f.presentTemplate(projectID, ft, q)
			if err != nil {
				return nil, err
			}
			return &t, nil
		}
	}
	return nil, notFound()
}

func (f *FakeCloudTruth) CreateTemplate(ctx context.Context, projectID string, body api.TemplateWrite) (*api.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateTemplate"); err != nil {
		return nil, err
	}
	i := f.projectIndex(projectID)
	if i < 0 {
		return nil, notFound()
	}
	if f.findTemplate(projectID, body.Name) != nil {
		return nil, conflict(fmt.Sprintf("Template with name '%s' already exists", body.Name))
	}
	desc, text := "", ""
	if body.Description != nil {
		desc = *body.Description
	}
	if body.Body != nil {
		text = *body.Body
	}
	ft := f.addTemplate(f.projects[i], body.Name, desc, text)
	t := ft.tmpl
	return &t, nil
}

func (f *FakeCloudTruth) UpdateTemplate(ctx context.Context, projectID, templateID string, body api.TemplateWrite) (*api.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateTemplate"); err != nil {
		return nil, err
	}
	for _, ft := range f.templates[projectID] {
		if ft.tmpl.ID != templateID || ft.deleted {
			continue
		}
		now := f.tick()
		if body.Name != "" {
			ft.tmpl.Name = body.Name
		}
		if body.Description != nil {
			ft.tmpl.Description = *body.Description
		}
		if body.Body != nil {
			b := *body.Body
			ft.tmpl.Body = &b
			ft.history = append(ft.history, templateVersion{body: b, at: now})
		}
		ft.tmpl.ModifiedAt = stamp(now)
		t := ft.tmpl
		return &t, nil
	}
	return nil, notFound()
}

func (f *FakeCloudTruth) DeleteTemplate(ctx context.Context, projectID, templateID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteTemplate"); err != nil {
		return err
	}
	for _, ft := range f.templates[projectID] {
		if ft.tmpl.ID == templateID && !ft.deleted {
			ft.deleted = true
			return nil
		}
	}
	return notFound()
}

func (f *FakeCloudTruth) PreviewTemplate(ctx context.Context, projectID, body string, q api.TemplateQuery) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PreviewTemplate"); err != nil {
		return "", err
	}
	at, err := parseAsOf(q.AsOf)
	if err != nil {
		return "", err
	}
	envURL := f.envs[0].URL
	if q.Environment != "" {
		i := f.envIndex(q.Environment)
		if i < 0 {
			return "", notFound()
		}
		envURL = f.envs[i].URL
	}
	out, errs, _ := f.evaluate(projectID, body, envURL, at, q.MaskSecrets)
	if len(errs) > 0 {
		return "", lookupError(errs)
	}
	return out, nil
}

// ---- NamedAPI ---------------------------------------------------------------

func (f *FakeCloudTruth) ListNamed(ctx context.Context, collection, name string) ([]api.Named, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListNamed"); err != nil {
		return nil, err
	}
	var out []api.Named
	for _, n := range f.named[collection] {
		if name == "" || n.Name == name {
			out = append(out, n)
		}
	}
	return out, nil
}
