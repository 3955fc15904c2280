package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/cloudtruth/internal/errors"
)

// DefaultProfile is used when no profile is selected.
const DefaultProfile = "default"

// Profile is one named entry of the profile file.
type Profile struct {
	APIKey      string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	ServerURL   string `yaml:"server_url,omitempty" json:"server_url,omitempty"`
	Project     string `yaml:"project,omitempty" json:"project,omitempty"`
	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ProfileFile is the on-disk profile store.
type ProfileFile struct {
	Profiles map[string]*Profile `yaml:"profiles"`
}

// ResolvedProfile is a profile with its source chain applied.
type ResolvedProfile struct {
	Profile
	// Chain lists the profiles consulted, starting with the selected one.
	Chain []string
	// APIKeyFrom names the profile that supplied the API key.
	APIKeyFrom string
}

// LoadProfiles reads and validates the profile file at path. A missing file
// yields an empty store.
func LoadProfiles(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ProfileFile{Profiles: map[string]*Profile{}}, nil
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}
	if err := ValidateProfiles(data); err != nil {
		return nil, err
	}

	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, dserrors.ConfigError{
			Field:      "path",
			Value:      path,
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]*Profile{}
	}
	for name, p := range pf.Profiles {
		if p == nil {
			pf.Profiles[name] = &Profile{}
		}
	}
	return &pf, nil
}

// Save writes the store to path through a temporary file in the same
// directory followed by a rename.
func (pf *ProfileFile) Save(path string) error {
	data, err := yaml.Marshal(pf)
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".cli.yml.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Names returns the profile names sorted.
func (pf *ProfileFile) Names() []string {
	names := make([]string, 0, len(pf.Profiles))
	for name := range pf.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named profile.
func (pf *ProfileFile) Get(name string) (*Profile, bool) {
	p, ok := pf.Profiles[name]
	return p, ok
}

// Set stores p under name.
func (pf *ProfileFile) Set(name string, p *Profile) {
	if pf.Profiles == nil {
		pf.Profiles = map[string]*Profile{}
	}
	pf.Profiles[name] = p
}

// Delete removes the named profile and reports whether it existed.
func (pf *ProfileFile) Delete(name string) bool {
	if _, ok := pf.Profiles[name]; !ok {
		return false
	}
	delete(pf.Profiles, name)
	return true
}

// Resolve walks the source chain of name. Fields set on a profile win over
// the same fields on its sources. A missing default profile resolves empty.
func (pf *ProfileFile) Resolve(name string) (*ResolvedProfile, error) {
	out := &ResolvedProfile{}
	if _, ok := pf.Profiles[name]; !ok {
		if name == DefaultProfile {
			return out, nil
		}
		return nil, pf.notFound(name)
	}

	seen := make(map[string]bool)
	for current := name; current != ""; {
		if seen[current] {
			return nil, dserrors.ConfigError{
				Field:      "source",
				Value:      current,
				Message:    fmt.Sprintf("circular profile reference: %s -> %s", strings.Join(out.Chain, " -> "), current),
				Suggestion: "Remove the 'source' entry that points back into the chain",
			}
		}
		seen[current] = true

		p, ok := pf.Profiles[current]
		if !ok {
			return nil, pf.notFound(current)
		}
		out.Chain = append(out.Chain, current)
		if out.APIKey == "" && p.APIKey != "" {
			out.APIKey = p.APIKey
			out.APIKeyFrom = current
		}
		fill(&out.ServerURL, p.ServerURL)
		fill(&out.Project, p.Project)
		fill(&out.Environment, p.Environment)
		fill(&out.Description, p.Description)
		current = p.Source
	}
	out.Source = pf.Profiles[name].Source
	return out, nil
}

func (pf *ProfileFile) notFound(name string) error {
	suggestion := "Create it with 'cloudtruth configuration profiles set " + name + "'"
	if names := pf.Names(); len(names) > 0 {
		suggestion = fmt.Sprintf("Available profiles: %s", strings.Join(names, ", "))
	}
	return dserrors.ConfigError{
		Field:      "profile",
		Value:      name,
		Message:    "profile not found",
		Suggestion: suggestion,
	}
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
