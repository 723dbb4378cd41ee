// Package rules holds the per-project rule table: which calls a project may
// make, which paths it must ship, what it builds and how its documentation
// must look.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"path"
	"reflect"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

//go:embed projects.yaml
var defaultTable []byte

// ErrNotFound is returned by Resolve for an unknown project name.
var ErrNotFound = errors.New("unknown project")

// Mode selects how a RuleSet judges call sites.
type Mode int

const (
	// None means the project has no C/C++ sources to judge.
	None Mode = iota
	// Allow means only listed names may be called.
	Allow
	// Deny means listed names must not be called.
	Deny
)

func (m Mode) String() string {
	switch m {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	}
	return "none"
}

// CallPolicy is the tagged allow/deny list of a RuleSet.
type CallPolicy struct {
	Mode  Mode
	names map[string]struct{}
}

// NewCallPolicy builds a policy for mode over names.
func NewCallPolicy(mode Mode, names ...string) CallPolicy {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return CallPolicy{Mode: mode, names: set}
}

// Listed reports whether name appears in the policy's list.
func (p CallPolicy) Listed(name string) bool {
	_, ok := p.names[name]
	return ok
}

// Names returns the listed names in sorted order.
func (p CallPolicy) Names() []string {
	out := make([]string, 0, len(p.names))
	for n := range p.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// DocTemplate describes the expected documentation file.
type DocTemplate struct {
	File               string   `yaml:"file"`
	Sections           []string `yaml:"sections"`
	FirstLineKeywords  []string `yaml:"first_line_keywords"`
	DisclosureSection  string   `yaml:"disclosure_section"`
	DisclosureKeywords []string `yaml:"disclosure_keywords"`
}

// RuleSet is the compliance rules for one project. A RuleSet obtained from a
// Registry is a private copy; changing it does not affect the registry.
type RuleSet struct {
	Key           string
	Name          string
	Calls         CallPolicy
	RequiredPaths []string
	Exclude       []string
	BuildTarget   string
	Docs          DocTemplate
}

func (rs *RuleSet) clone() *RuleSet {
	c := *rs
	c.Calls = NewCallPolicy(rs.Calls.Mode, rs.Calls.Names()...)
	c.RequiredPaths = append([]string(nil), rs.RequiredPaths...)
	c.Exclude = append([]string(nil), rs.Exclude...)
	c.Docs.Sections = append([]string(nil), rs.Docs.Sections...)
	c.Docs.FirstLineKeywords = append([]string(nil), rs.Docs.FirstLineKeywords...)
	c.Docs.DisclosureKeywords = append([]string(nil), rs.Docs.DisclosureKeywords...)
	return &c
}

type table struct {
	SchemaVersion int       `yaml:"schema_version" validate:"eq=1"`
	MinVersion    string    `yaml:"min_version" validate:"omitempty,semver"`
	Defaults      defaults  `yaml:"defaults"`
	Projects      []project `yaml:"projects" validate:"required,min=1,dive"`
}

type defaults struct {
	Docs DocTemplate `yaml:"docs"`
}

type project struct {
	Name               string       `yaml:"name" validate:"required"`
	AllowedFunctions   []string     `yaml:"allowed_functions" validate:"omitempty,dive,required"`
	ForbiddenFunctions []string     `yaml:"forbidden_functions" validate:"omitempty,dive,required"`
	NoSources          bool         `yaml:"no_sources"`
	BuildTarget        string       `yaml:"build_target"`
	RequiredPaths      []string     `yaml:"required_paths" validate:"dive,required"`
	Exclude            []string     `yaml:"exclude" validate:"dive,required"`
	Docs               *DocTemplate `yaml:"docs"`
}

// Registry is an immutable, normalized lookup of RuleSets.
type Registry struct {
	sets     map[string]*RuleSet
	keys     []string
	problems []error
	docs     DocTemplate
}

// Normalize folds a project name for lookup: surrounding space is trimmed,
// letters are lowered and '-' and ' ' become '_'.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(n)
}

// Default loads the embedded rule table.
func Default(toolVersion string) (*Registry, error) {
	return Load(defaultTable, toolVersion)
}

// Load parses a YAML rule table. Only unparsable YAML is an error; structural
// problems are collected and reported by Validate.
func Load(data []byte, toolVersion string) (*Registry, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing rule table: %w", err)
	}

	if t.Defaults.Docs.File == "" {
		t.Defaults.Docs.File = "README.md"
	}

	r := &Registry{sets: make(map[string]*RuleSet), docs: t.Defaults.Docs}
	r.problems = append(r.problems, structErrors(&t)...)
	r.problems = append(r.problems, checkMinVersion(t.MinVersion, toolVersion)...)

	declared := make(map[string]string)
	for i := range t.Projects {
		p := &t.Projects[i]
		key := Normalize(p.Name)
		if key == "" {
			r.problems = append(r.problems, fmt.Errorf("project #%d: empty name", i+1))
			continue
		}
		if prev, ok := declared[key]; ok {
			r.problems = append(r.problems, fmt.Errorf(
				"duplicate normalized key: %q clashes with %q (both normalize to %q)", p.Name, prev, key))
			continue
		}
		declared[key] = p.Name

		rs, errs := buildRuleSet(key, p, t.Defaults.Docs)
		r.problems = append(r.problems, errs...)
		r.sets[key] = rs
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)
	return r, nil
}

func buildRuleSet(key string, p *project, docs DocTemplate) (*RuleSet, []error) {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{p.Name}, args...)...))
	}

	rs := &RuleSet{
		Key:           key,
		Name:          p.Name,
		BuildTarget:   strings.TrimSpace(p.BuildTarget),
		RequiredPaths: append([]string(nil), p.RequiredPaths...),
		Exclude:       append([]string(nil), p.Exclude...),
		Docs:          mergeDocs(docs, p.Docs),
	}

	allow, deny := p.AllowedFunctions != nil, p.ForbiddenFunctions != nil
	switch {
	case allow && deny:
		fail("declares both allowed_functions and forbidden_functions")
	case (allow || deny) && p.NoSources:
		fail("no_sources cannot be combined with a function list")
	case allow:
		rs.Calls = NewCallPolicy(Allow, p.AllowedFunctions...)
	case deny:
		rs.Calls = NewCallPolicy(Deny, p.ForbiddenFunctions...)
	case p.NoSources:
		rs.Calls = NewCallPolicy(None)
	default:
		fail("missing call policy (allowed_functions, forbidden_functions or no_sources)")
	}
	for _, l := range []struct {
		field string
		list  []string
	}{
		{"allowed_functions", p.AllowedFunctions},
		{"forbidden_functions", p.ForbiddenFunctions},
	} {
		field, list := l.field, l.list
		if list != nil && len(list) == 0 {
			fail("%s is empty", field)
		}
		if d := duplicates(list); len(d) > 0 {
			fail("duplicate %s: %v", field, d)
		}
	}

	for _, rp := range p.RequiredPaths {
		clean := path.Clean(strings.TrimSuffix(rp, "/"))
		switch {
		case strings.TrimSpace(rp) == "":
			fail("empty required path")
		case path.IsAbs(rp) || clean == ".." || strings.HasPrefix(clean, "../"):
			fail("required path %q escapes the project root", rp)
		case rs.BuildTarget != "" && clean == path.Clean(rs.BuildTarget):
			fail("required path %q is the build artifact", rp)
		}
	}
	if d := duplicates(p.RequiredPaths); len(d) > 0 {
		fail("duplicate required_paths: %v", d)
	}
	for _, ex := range p.Exclude {
		if !doublestar.ValidatePattern(ex) {
			fail("invalid exclude pattern %q", ex)
		}
	}
	return rs, errs
}

func mergeDocs(base DocTemplate, override *DocTemplate) DocTemplate {
	d := base
	if override == nil {
		return d
	}
	if override.File != "" {
		d.File = override.File
	}
	if override.Sections != nil {
		d.Sections = override.Sections
	}
	if override.FirstLineKeywords != nil {
		d.FirstLineKeywords = override.FirstLineKeywords
	}
	if override.DisclosureSection != "" {
		d.DisclosureSection = override.DisclosureSection
	}
	if override.DisclosureKeywords != nil {
		d.DisclosureKeywords = override.DisclosureKeywords
	}
	return d
}

func duplicates(list []string) []string {
	seen := make(map[string]int, len(list))
	var out []string
	for _, s := range list {
		seen[s]++
		if seen[s] == 2 {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	return v
}()

func structErrors(t *table) []error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Errorf("%s: failed %q check", strings.TrimPrefix(fe.Namespace(), "table."), fe.Tag()))
	}
	return out
}

func checkMinVersion(minVersion, toolVersion string) []error {
	if minVersion == "" {
		return nil
	}
	want, err := version.NewVersion(minVersion)
	if err != nil {
		return []error{fmt.Errorf("min_version %q: %w", minVersion, err)}
	}
	have, err := version.NewVersion(toolVersion)
	if err != nil {
		// Development builds carry no comparable version.
		return nil
	}
	if have.LessThan(want) {
		return []error{fmt.Errorf("rule table requires version %s or newer (running %s)", want, have)}
	}
	return nil
}

// Resolve returns a copy of the RuleSet registered under the normalized form
// of name.
func (r *Registry) Resolve(name string) (*RuleSet, error) {
	rs, ok := r.sets[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNotFound, name)
	}
	return rs.clone(), nil
}

// Validate returns every structural problem found while loading.
func (r *Registry) Validate() []error {
	return append([]error(nil), r.problems...)
}

// DefaultDocs returns the documentation template projects inherit.
func (r *Registry) DefaultDocs() DocTemplate {
	return (&RuleSet{Docs: r.docs}).clone().Docs
}

// List returns the registered keys in sorted order.
func (r *Registry) List() []string {
	return append([]string(nil), r.keys...)
}
