package results

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/micromeda/micromeda-server/common"
	"github.com/micromeda/micromeda-server/genprop"
)

// Match is a protein of a sample hit by a signature.
type Match struct {
	SampleName         string
	ProteinName        string
	SignatureAccession string
	ExpectedValue      float64
}

// Results holds the matches of a set of samples together with the property
// and step assignments computed from them. It is read only once built.
type Results struct {
	tree        *genprop.Tree
	sampleNames []string
	matches     []Match
	sequences   map[string]map[string]string
	assigners   map[string]*genprop.Assigner
}

// New computes the assignments of every sample against the tree. Samples
// that only appear in matches are appended after sampleNames.
func New(tree *genprop.Tree, sampleNames []string, matches []Match, sequences map[string]map[string]string) *Results {
	results := &Results{
		tree:      tree,
		matches:   matches,
		sequences: sequences,
		assigners: map[string]*genprop.Assigner{},
	}
	if results.sequences == nil {
		results.sequences = map[string]map[string]string{}
	}

	matched := map[string]mapset.Set[string]{}
	addSample := func(name string) {
		if _, ok := matched[name]; ok {
			return
		}
		matched[name] = mapset.NewThreadUnsafeSet[string]()
		results.sampleNames = append(results.sampleNames, name)
	}
	for _, name := range sampleNames {
		addSample(name)
	}
	for _, match := range matches {
		addSample(match.SampleName)
		matched[match.SampleName].Add(match.SignatureAccession)
	}

	for _, name := range results.sampleNames {
		assigner := genprop.NewAssigner(tree, matched[name])
		assigner.AssignAll()
		results.assigners[name] = assigner
	}
	return results
}

// Tree returns the property tree the results were computed against.
func (r *Results) Tree() *genprop.Tree {
	return r.tree
}

// SampleNames returns the samples in input order.
func (r *Results) SampleNames() []string {
	return r.sampleNames
}

// Matches returns every match of every sample.
func (r *Results) Matches() []Match {
	return r.matches
}

// Sequences returns protein sequences keyed by sample then protein.
func (r *Results) Sequences() map[string]map[string]string {
	return r.sequences
}

// PropertyAssignment returns the assignment of a property for a sample.
func (r *Results) PropertyAssignment(propertyID, sample string) (genprop.Assignment, error) {
	property := r.tree.Get(propertyID)
	if property == nil {
		return "", fmt.Errorf("%w: %s", common.ErrNoSuchProperty, propertyID)
	}
	assigner, ok := r.assigners[sample]
	if !ok {
		return "", fmt.Errorf("%w: %s", common.ErrNoSuchSample, sample)
	}
	return assigner.Property(property), nil
}

// StepAssignment returns the assignment of a property step for a sample.
func (r *Results) StepAssignment(propertyID string, stepNumber int, sample string) (genprop.Assignment, error) {
	property := r.tree.Get(propertyID)
	if property == nil {
		return "", fmt.Errorf("%w: %s", common.ErrNoSuchProperty, propertyID)
	}
	assigner, ok := r.assigners[sample]
	if !ok {
		return "", fmt.Errorf("%w: %s", common.ErrNoSuchSample, sample)
	}
	assignment, ok := assigner.Step(property, stepNumber)
	if !ok {
		return "", fmt.Errorf("%w: %s step %d", common.ErrNoSuchStep, propertyID, stepNumber)
	}
	return assignment, nil
}

// SupportingProtein is a protein whose matches support a step.
type SupportingProtein struct {
	SampleName    string
	ProteinName   string
	ExpectedValue float64
	Sequence      string
}

// SupportingProteins returns the proteins hit by any signature of the step,
// for one sample or all samples when sample is empty. Proteins are ordered
// by sample, then by best expected value. With topOnly only the best protein
// of each sample is kept.
func (r *Results) SupportingProteins(propertyID string, stepNumber int, sample string, topOnly bool) ([]SupportingProtein, error) {
	property := r.tree.Get(propertyID)
	if property == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrNoSuchProperty, propertyID)
	}
	step := property.Step(stepNumber)
	if step == nil {
		return nil, fmt.Errorf("%w: %s step %d", common.ErrNoSuchStep, propertyID, stepNumber)
	}
	if sample != "" {
		if _, ok := r.assigners[sample]; !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrNoSuchSample, sample)
		}
	}

	signatures := mapset.NewThreadUnsafeSet(step.Signatures()...)
	best := map[[2]string]SupportingProtein{}
	for _, match := range r.matches {
		if sample != "" && match.SampleName != sample {
			continue
		}
		if !signatures.Contains(match.SignatureAccession) {
			continue
		}
		key := [2]string{match.SampleName, match.ProteinName}
		current, ok := best[key]
		if !ok || match.ExpectedValue < current.ExpectedValue {
			best[key] = SupportingProtein{
				SampleName:    match.SampleName,
				ProteinName:   match.ProteinName,
				ExpectedValue: match.ExpectedValue,
				Sequence:      r.sequences[match.SampleName][match.ProteinName],
			}
		}
	}

	order := map[string]int{}
	for i, name := range r.sampleNames {
		order[name] = i
	}
	proteins := make([]SupportingProtein, 0, len(best))
	for _, protein := range best {
		proteins = append(proteins, protein)
	}
	sort.Slice(proteins, func(i, j int) bool {
		a, b := proteins[i], proteins[j]
		if a.SampleName != b.SampleName {
			return order[a.SampleName] < order[b.SampleName]
		}
		if a.ExpectedValue != b.ExpectedValue {
			return a.ExpectedValue < b.ExpectedValue
		}
		return a.ProteinName < b.ProteinName
	})

	if !topOnly {
		return proteins, nil
	}
	var top []SupportingProtein
	for _, protein := range proteins {
		if len(top) == 0 || top[len(top)-1].SampleName != protein.SampleName {
			top = append(top, protein)
		}
	}
	return top, nil
}

const fastaLineWidth = 60

// Fasta renders the supporting proteins of a step that have a sequence.
func (r *Results) Fasta(propertyID string, stepNumber int, topOnly bool) (string, error) {
	proteins, err := r.SupportingProteins(propertyID, stepNumber, "", topOnly)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for _, protein := range proteins {
		if protein.Sequence == "" {
			continue
		}
		fmt.Fprintf(&builder, ">%s %s\n", protein.ProteinName, protein.SampleName)
		sequence := protein.Sequence
		for len(sequence) > fastaLineWidth {
			builder.WriteString(sequence[:fastaLineWidth])
			builder.WriteByte('\n')
			sequence = sequence[fastaLineWidth:]
		}
		builder.WriteString(sequence)
		builder.WriteByte('\n')
	}
	return builder.String(), nil
}
