// Package validate is the post-generation export gate: placeholder-free
// output, required subsections, regulatory grounding, and the banned-phrase
// contamination check. Pure functions, no side effects.
package validate

import (
	"fmt"
	"strings"

	"safeplan/internal/contamination"
	"safeplan/internal/models"
	"safeplan/internal/sections"
)

// requiredMarkers must all appear (case-insensitive) in every section's text.
var requiredMarkers = []string{"purpose:", "procedures", "responsibilities", "forms", "references:"}

const minCitationsWarn = 3

// Validate checks the produced sections against the expected catalog and the
// project metadata. CanProceed is true iff no hard errors were found;
// warnings never block.
func Validate(cat *sections.Catalog, meta models.MetadataState, proc models.ProcessingState) models.ValidationState {
	var guard contamination.Guard
	state := models.ValidationState{
		Errors:   []string{},
		Warnings: []string{},
	}

	byTitle := map[string]models.DocumentSection{}
	for _, sec := range proc.Sections {
		byTitle[strings.ToLower(sec.Name)] = sec
	}

	for _, def := range cat.Sections {
		if _, ok := byTitle[strings.ToLower(def.Title)]; !ok {
			state.Errors = append(state.Errors, fmt.Sprintf("missing section: %s", def.Title))
		}
	}

	for _, sec := range proc.Sections {
		text := strings.Join(sec.Paragraphs, "\n")
		lower := strings.ToLower(text)

		for _, tok := range FindPlaceholders(text) {
			state.Errors = append(state.Errors, fmt.Sprintf("section %q has unresolved placeholder %q", sec.Name, tok))
		}
		for _, marker := range requiredMarkers {
			if !strings.Contains(lower, marker) {
				state.Errors = append(state.Errors, fmt.Sprintf("section %q missing subsection %q", sec.Name, marker))
			}
		}
		if strings.Contains(text, models.InsufficientEvidenceSentinel) {
			state.Errors = append(state.Errors, fmt.Sprintf("section %q contains the insufficiency sentinel", sec.Name))
		}
		for _, phrase := range guard.Detect(text) {
			state.Errors = append(state.Errors, fmt.Sprintf("section %q contains banned phrase %q", sec.Name, phrase))
		}

		if !strings.Contains(lower, "em 385") {
			state.Warnings = append(state.Warnings, fmt.Sprintf("section %q does not reference EM 385", sec.Name))
		}
		if len(sec.Citations) < minCitationsWarn {
			state.Warnings = append(state.Warnings, fmt.Sprintf("section %q has only %d citations", sec.Name, len(sec.Citations)))
		}
		if sec.RegulationOnly {
			state.Warnings = append(state.Warnings, fmt.Sprintf("section %q was generated from regulation-only evidence", sec.Name))
		}
	}

	checkMetaField(&state, "project name", meta.ProjectName)
	checkMetaField(&state, "location", meta.Location)
	checkMetaField(&state, "owner", meta.Owner)
	checkMetaField(&state, "prime contractor", meta.PrimeContractor)

	state.CanProceed = len(state.Errors) == 0
	return state
}

func checkMetaField(state *models.ValidationState, label, value string) {
	if strings.TrimSpace(value) == "" {
		state.Errors = append(state.Errors, fmt.Sprintf("project metadata missing: %s", label))
		return
	}
	if HasPlaceholder(value) {
		state.Errors = append(state.Errors, fmt.Sprintf("project metadata %s contains a placeholder", label))
	}
}
