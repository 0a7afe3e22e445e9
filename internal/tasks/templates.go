package tasks

import (
	"sort"
	"strings"

	"fleetd/internal/ferrors"
)

// Template is a named scaffold that produces a pre-populated task.
type Template struct {
	Name             string
	TitlePrefix      string
	DefaultPriority  Priority
	DefaultTags      []string
	DescriptionScaffold string
}

// templateCatalog is the fixed catalog referenced by §4.1. Entries here
// also back the GitHub webhook's label-derived template lookup in §6.
var templateCatalog = map[string]Template{
	"bug": {
		Name:                "bug",
		TitlePrefix:         "[Bug] ",
		DefaultPriority:     PriorityHigh,
		DefaultTags:         []string{"bug"},
		DescriptionScaffold: "Reproduce, diagnose, and fix the reported defect.",
	},
	"feature": {
		Name:                "feature",
		TitlePrefix:         "[Feature] ",
		DefaultPriority:     PriorityMedium,
		DefaultTags:         []string{"feature"},
		DescriptionScaffold: "Implement and test the requested capability.",
	},
	"refactor": {
		Name:                "refactor",
		TitlePrefix:         "[Refactor] ",
		DefaultPriority:     PriorityLow,
		DefaultTags:         []string{"refactor"},
		DescriptionScaffold: "Restructure without changing observable behavior.",
	},
	"review": {
		Name:                "review",
		TitlePrefix:         "[Review] ",
		DefaultPriority:     PriorityMedium,
		DefaultTags:         []string{"review"},
		DescriptionScaffold: "Review the proposed change for correctness and style.",
	},
	"deploy": {
		Name:                "deploy",
		TitlePrefix:         "[Deploy] ",
		DefaultPriority:     PriorityHigh,
		DefaultTags:         []string{"deploy"},
		DescriptionScaffold: "Roll out the merged change to its target environment.",
	},
}

// TemplateNames returns every known template name, sorted, for both the
// /tasks/templates endpoint and unknown-name error messages.
func TemplateNames() []string {
	names := make([]string, 0, len(templateCatalog))
	for n := range templateCatalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupTemplate returns the named template, matched case-insensitively.
// ok is false for an unknown name; no default template is substituted.
func LookupTemplate(name string) (Template, bool) {
	t, ok := templateCatalog[strings.ToLower(name)]
	return t, ok
}

// CreateFromTemplate builds the pending task described by §4.1: title is
// the template's prefix concatenated with the caller's title, tags are
// the template set unioned with caller extras.
func (s *Store) CreateFromTemplate(templateName, title, description, project, createdBy string, extraTags []string) (*Task, error) {
	tmpl, ok := LookupTemplate(templateName)
	if !ok {
		return nil, ferrors.New(ferrors.InvalidArgument, "unknown template %q, known templates: %s", templateName, strings.Join(TemplateNames(), ", "))
	}
	desc := description
	if desc == "" {
		desc = tmpl.DescriptionScaffold
	}
	t := &Task{
		Title:       tmpl.TitlePrefix + title,
		Description: desc,
		Project:     project,
		Scope:       Scope{Tags: unionStrings(tmpl.DefaultTags, extraTags)},
		Priority:    tmpl.DefaultPriority,
		CreatedBy:   createdBy,
	}
	return s.Create(t)
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
