package genprop

import "strings"

// Assignment is the presence call of a property, step or evidence for one
// sample.
type Assignment string

const (
	AssignmentYes     Assignment = "YES"
	AssignmentPartial Assignment = "PARTIAL"
	AssignmentNo      Assignment = "NO"
)

// GenomeProperty is a single record of the Genome Properties flat file.
type GenomeProperty struct {
	ID           string
	Name         string
	Type         string
	Threshold    int
	Description  string
	PrivateNotes string
	Public       bool
	References   []LiteratureReference
	Databases    []DatabaseReference
	Steps        []*Step

	// Explicit parent ids found in PN lines.
	parentIDs []string

	Parents  []*GenomeProperty
	Children []*GenomeProperty
}

// LiteratureReference is a publication cited by a property.
type LiteratureReference struct {
	Number   int
	PubMedID int
	Title    string
	Authors  string
	Citation string
}

// DatabaseReference links a property to records of an external database.
type DatabaseReference struct {
	RecordTitle  string
	DatabaseName string
	RecordIDs    []string
}

// Step is one step of a property. Its functional elements are alternatives.
type Step struct {
	Number             int
	FunctionalElements []*FunctionalElement
}

// FunctionalElement is a function that can carry out its step.
type FunctionalElement struct {
	ID       string
	Name     string
	Required bool
	Evidence []*Evidence
}

// Evidence is an EV line with its TG GO terms.
type Evidence struct {
	InterProIDs   []string
	ConsortiumIDs []string
	PropertyIDs   []string
	GOTerms       []string
	Sufficient    bool
}

// Required reports whether any functional element of the step is required.
func (s *Step) Required() bool {
	for _, element := range s.FunctionalElements {
		if element.Required {
			return true
		}
	}
	return false
}

// Name is the name of the first functional element.
func (s *Step) Name() string {
	if len(s.FunctionalElements) == 0 {
		return ""
	}
	return s.FunctionalElements[0].Name
}

// Signatures returns the InterPro and consortium accessions named by the
// step's evidence.
func (s *Step) Signatures() []string {
	var signatures []string
	for _, element := range s.FunctionalElements {
		for _, evidence := range element.Evidence {
			signatures = append(signatures, evidence.InterProIDs...)
			signatures = append(signatures, evidence.ConsortiumIDs...)
		}
	}
	return signatures
}

// HasGenomeProperty reports whether the evidence points at another property.
func (e *Evidence) HasGenomeProperty() bool {
	return len(e.PropertyIDs) > 0
}

// Step returns the step with the given number, or nil.
func (p *GenomeProperty) Step(number int) *Step {
	for _, step := range p.Steps {
		if step.Number == number {
			return step
		}
	}
	return nil
}

// RequiredSteps returns the steps that have a required functional element.
func (p *GenomeProperty) RequiredSteps() []*Step {
	var required []*Step
	for _, step := range p.Steps {
		if step.Required() {
			required = append(required, step)
		}
	}
	return required
}

// ChildIDs returns the ids of the properties referenced by the steps.
func (p *GenomeProperty) ChildIDs() []string {
	var ids []string
	seen := map[string]bool{}
	for _, step := range p.Steps {
		for _, element := range step.FunctionalElements {
			for _, evidence := range element.Evidence {
				for _, id := range evidence.PropertyIDs {
					if !seen[id] {
						seen[id] = true
						ids = append(ids, id)
					}
				}
			}
		}
	}
	return ids
}

// IsPropertyID reports whether the identifier names a genome property.
func IsPropertyID(id string) bool {
	return strings.HasPrefix(id, "GenProp")
}
