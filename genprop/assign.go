package genprop

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Assigner computes assignments of one sample from the set of signature
// accessions its proteins matched. Results are memoized.
type Assigner struct {
	tree    *Tree
	matched mapset.Set[string]

	properties map[string]Assignment
	steps      map[string]map[int]Assignment
	visiting   map[string]bool
}

// NewAssigner creates an assigner for a sample.
func NewAssigner(tree *Tree, matched mapset.Set[string]) *Assigner {
	if matched == nil {
		matched = mapset.NewThreadUnsafeSet[string]()
	}
	return &Assigner{
		tree:       tree,
		matched:    matched,
		properties: map[string]Assignment{},
		steps:      map[string]map[int]Assignment{},
		visiting:   map[string]bool{},
	}
}

// AssignAll assigns every property of the tree.
func (a *Assigner) AssignAll() {
	for _, property := range a.tree.Properties() {
		a.Property(property)
	}
}

// Property returns the assignment of the property.
func (a *Assigner) Property(property *GenomeProperty) Assignment {
	if assignment, ok := a.properties[property.ID]; ok {
		return assignment
	}
	// A property reached again through its own evidence counts as absent.
	if a.visiting[property.ID] {
		return AssignmentNo
	}
	a.visiting[property.ID] = true
	defer delete(a.visiting, property.ID)

	stepAssignments := make(map[int]Assignment, len(property.Steps))
	var all, required []Assignment
	for _, step := range property.Steps {
		assignment := a.step(step)
		stepAssignments[step.Number] = assignment
		all = append(all, assignment)
		if step.Required() {
			required = append(required, assignment)
		}
	}

	var assignment Assignment
	if len(required) > 0 {
		assignment = AssignFromRequiredSteps(required, property.Threshold)
	} else {
		assignment = AssignFromAllSteps(all)
	}

	a.properties[property.ID] = assignment
	a.steps[property.ID] = stepAssignments
	return assignment
}

// Step returns the assignment of step number of the property. The second
// value is false when the step does not exist.
func (a *Assigner) Step(property *GenomeProperty, number int) (Assignment, bool) {
	a.Property(property)
	assignment, ok := a.steps[property.ID][number]
	return assignment, ok
}

// Properties returns the memoized property assignments.
func (a *Assigner) Properties() map[string]Assignment {
	return a.properties
}

// Steps returns the memoized step assignments keyed by property id.
func (a *Assigner) Steps() map[string]map[int]Assignment {
	return a.steps
}

func (a *Assigner) step(step *Step) Assignment {
	elements := make([]Assignment, 0, len(step.FunctionalElements))
	for _, element := range step.FunctionalElements {
		elements = append(elements, a.element(element))
	}
	return AssignStep(elements)
}

func (a *Assigner) element(element *FunctionalElement) Assignment {
	var assignments []Assignment
	for _, evidence := range element.Evidence {
		assignment := a.evidence(evidence)
		if evidence.Sufficient && assignment == AssignmentYes {
			return AssignmentYes
		}
		assignments = append(assignments, assignment)
	}
	return AssignStep(assignments)
}

func (a *Assigner) evidence(evidence *Evidence) Assignment {
	if evidence.HasGenomeProperty() {
		best := AssignmentNo
		for _, id := range evidence.PropertyIDs {
			child := a.tree.Get(id)
			if child == nil {
				continue
			}
			best = better(best, a.Property(child))
		}
		return best
	}

	for _, id := range evidence.ConsortiumIDs {
		if a.matched.Contains(id) {
			return AssignmentYes
		}
	}
	for _, id := range evidence.InterProIDs {
		if a.matched.Contains(id) {
			return AssignmentYes
		}
	}
	return AssignmentNo
}

// AssignStep combines alternatives: YES if any is YES, else PARTIAL if any
// is PARTIAL, else NO.
func AssignStep(assignments []Assignment) Assignment {
	result := AssignmentNo
	for _, assignment := range assignments {
		result = better(result, assignment)
	}
	return result
}

// AssignFromRequiredSteps is YES when all required steps are YES and
// PARTIAL when more than threshold of them are.
func AssignFromRequiredSteps(required []Assignment, threshold int) Assignment {
	yes := count(required, AssignmentYes)
	switch {
	case len(required) > 0 && yes == len(required):
		return AssignmentYes
	case yes > threshold:
		return AssignmentPartial
	default:
		return AssignmentNo
	}
}

// AssignFromAllSteps is used for properties without required steps.
func AssignFromAllSteps(steps []Assignment) Assignment {
	if len(steps) == 0 {
		return AssignmentNo
	}
	yes := count(steps, AssignmentYes)
	switch {
	case yes == len(steps):
		return AssignmentYes
	case yes > 0 || count(steps, AssignmentPartial) > 0:
		return AssignmentPartial
	default:
		return AssignmentNo
	}
}

func count(assignments []Assignment, target Assignment) int {
	n := 0
	for _, assignment := range assignments {
		if assignment == target {
			n++
		}
	}
	return n
}

func rank(assignment Assignment) int {
	switch assignment {
	case AssignmentYes:
		return 2
	case AssignmentPartial:
		return 1
	default:
		return 0
	}
}

func better(a, b Assignment) Assignment {
	if rank(b) > rank(a) {
		return b
	}
	return a
}
