// Package sections holds the static Section 11 safety plan matrix and the
// DFOW-to-sub-plan trigger table. Both are loaded once at process start and
// passed by reference; there is no package-level mutable state.
package sections

import "strings"

// SectionDefinition describes one target section of the safety plan.
type SectionDefinition struct {
	ID        string
	Title     string
	Intent    string
	Questions []string // must-answer questions, in order
	EMRefs    []string // allowed EM 385-1-1 references
	Keywords  []string

	// Evidence quotas, enforced by the generator.
	MinProjectBullets    int
	MaxProjectBullets    int
	MinRegulationBullets int
	MaxRegulationBullets int
}

// PlanStatus is one row of the site-specific sub-plan matrix for a project.
type PlanStatus struct {
	PlanName string
	Status   string // "Required" / "Not Applicable"
	State    string // "Pending" when required, "" otherwise
	Triggers []string
}

const (
	PlanRequired      = "Required"
	PlanNotApplicable = "Not Applicable"
	PlanPending       = "Pending"
)

// Catalog is the immutable section and sub-plan configuration.
type Catalog struct {
	Sections []SectionDefinition
	subPlans []subPlanDef
}

type subPlanDef struct {
	name     string
	keywords []string
}

// Load builds the static catalog.
func Load() *Catalog {
	return &Catalog{Sections: sectionDefs, subPlans: subPlanDefs}
}

// ByID looks up a section definition; ok is false when the id is unknown.
func (c *Catalog) ByID(id string) (SectionDefinition, bool) {
	for _, s := range c.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return SectionDefinition{}, false
}

// MapToPlans marks each sub-plan Required when any detected work activity or
// hazard contains one of its trigger keywords, else Not Applicable. The
// result order matches the static table, so the mapping is deterministic.
func (c *Catalog) MapToPlans(activities, hazards []string) []PlanStatus {
	terms := make([]string, 0, len(activities)+len(hazards))
	for _, a := range activities {
		terms = append(terms, strings.ToLower(a))
	}
	for _, h := range hazards {
		terms = append(terms, strings.ToLower(h))
	}

	out := make([]PlanStatus, 0, len(c.subPlans))
	for _, def := range c.subPlans {
		matched := make([]string, 0, 2)
		for _, kw := range def.keywords {
			for _, term := range terms {
				if strings.Contains(term, kw) {
					matched = append(matched, kw)
					break
				}
			}
		}
		st := PlanStatus{PlanName: def.name, Status: PlanNotApplicable}
		if len(matched) > 0 {
			st.Status = PlanRequired
			st.State = PlanPending
			st.Triggers = matched
		}
		out = append(out, st)
	}
	return out
}

// ProjectContext carries the project facts the retriever and generator need.
type ProjectContext struct {
	ProjectName     string
	Location        string
	Owner           string
	PrimeContractor string
	Activities      []string
	Hazards         []string
}

var sectionDefs = []SectionDefinition{
	{
		ID:     "site-safety-administration",
		Title:  "Site Safety Administration",
		Intent: "Designate safety roles, authority, and the site-specific plan administration chain.",
		Questions: []string{
			"Who is the designated SSHO and what is their authority?",
			"How is the safety plan communicated to site personnel?",
			"What records document plan administration?",
		},
		EMRefs:               []string{"01.A.13", "01.A.17"},
		Keywords:             []string{"SSHO", "safety officer", "competent person", "site safety"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
	{
		ID:     "training",
		Title:  "Training",
		Intent: "Define required safety training, indoctrination, and qualification records.",
		Questions: []string{
			"What initial indoctrination do workers receive?",
			"Which tasks require qualified or certified personnel?",
			"How are training records maintained?",
		},
		EMRefs:               []string{"01.B.02", "01.B.04"},
		Keywords:             []string{"training", "indoctrination", "qualification", "certification"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
	{
		ID:     "personal-protective-equipment",
		Title:  "Personal Protective Equipment",
		Intent: "Specify PPE requirements by task and the hazard assessments behind them.",
		Questions: []string{
			"What PPE is required for each definable feature of work?",
			"Who performs and documents the hazard assessment?",
		},
		EMRefs:               []string{"05.A.01", "05.B.01"},
		Keywords:             []string{"PPE", "hard hat", "eye protection", "hearing protection", "gloves"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
	{
		ID:     "fall-protection",
		Title:  "Fall Protection",
		Intent: "Establish fall protection systems, rescue provisions, and the 6-foot threshold controls.",
		Questions: []string{
			"Where does work occur at or above six feet?",
			"What fall protection systems are used and who inspects them?",
			"What is the rescue plan for a suspended worker?",
		},
		EMRefs:               []string{"21.A.01", "21.C.01", "21.D.01"},
		Keywords:             []string{"fall protection", "harness", "anchor", "guardrail", "leading edge"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
	{
		ID:     "excavation",
		Title:  "Excavation and Trenching",
		Intent: "Control excavation hazards: protective systems, access, spoil placement, utility location.",
		Questions: []string{
			"How are underground utilities located before digging?",
			"What protective systems apply at depth?",
			"Who is the excavation competent person?",
		},
		EMRefs:               []string{"25.A.01", "25.B.01"},
		Keywords:             []string{"excavation", "trench", "shoring", "sloping", "spoil"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
	{
		ID:     "electrical-safety",
		Title:  "Electrical Safety",
		Intent: "Define energized work controls, GFCI use, lockout/tagout, and overhead line clearances.",
		Questions: []string{
			"How is temporary power protected?",
			"What lockout/tagout procedure applies?",
			"What clearances apply near overhead lines?",
		},
		EMRefs:               []string{"11.A.01", "12.A.01"},
		Keywords:             []string{"electrical", "GFCI", "lockout", "tagout", "energized", "overhead line"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
	{
		ID:     "emergency-response",
		Title:  "Emergency Response",
		Intent: "Plan medical response, evacuation, severe weather, and emergency notification.",
		Questions: []string{
			"Where is the nearest emergency medical facility?",
			"What is the site evacuation and muster procedure?",
			"Who makes emergency notifications and to whom?",
		},
		EMRefs:               []string{"01.E.01", "03.A.02"},
		Keywords:             []string{"emergency", "evacuation", "first aid", "muster", "911"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
	{
		ID:     "hazard-communication",
		Title:  "Hazard Communication",
		Intent: "Manage hazardous chemical inventory, SDS access, labeling, and worker information.",
		Questions: []string{
			"Where is the chemical inventory and SDS library kept?",
			"How are containers labeled on site?",
		},
		EMRefs:               []string{"06.B.01"},
		Keywords:             []string{"hazard communication", "SDS", "chemical", "label", "HAZCOM"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
	{
		ID:     "housekeeping",
		Title:  "Housekeeping and Material Handling",
		Intent: "Keep work areas clear, control debris, and define safe manual and mechanical handling.",
		Questions: []string{
			"How is debris removed from work areas and at what frequency?",
			"What mechanical aids reduce manual lifting?",
		},
		EMRefs:               []string{"14.A.01", "02.A.01"},
		Keywords:             []string{"housekeeping", "debris", "material handling", "lifting"},
		MinProjectBullets:    2,
		MaxProjectBullets:    4,
		MinRegulationBullets: 1,
		MaxRegulationBullets: 2,
	},
}

// subPlanDefs keys are lower-case substrings matched against detected work
// activities and hazards.
var subPlanDefs = []subPlanDef{
	{name: "Silica Compliance Plan", keywords: []string{"concrete", "masonry", "silica", "grinding", "abrasive blasting"}},
	{name: "Fall Protection Plan", keywords: []string{"roof", "steel erection", "scaffold", "leading edge", "fall"}},
	{name: "Excavation Plan", keywords: []string{"excavation", "trench", "earthwork", "digging"}},
	{name: "Crane and Rigging Plan", keywords: []string{"crane", "rigging", "hoisting", "lift plan"}},
	{name: "Hot Work Plan", keywords: []string{"welding", "cutting", "brazing", "hot work", "torch"}},
	{name: "Confined Space Plan", keywords: []string{"confined space", "manhole", "vault", "tank entry"}},
	{name: "Demolition Plan", keywords: []string{"demolition", "dismantling", "selective removal"}},
	{name: "Lead and Asbestos Plan", keywords: []string{"asbestos", "lead paint", "abatement"}},
}
