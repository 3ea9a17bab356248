package genprop

import (
	"errors"
	"os"
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestTree(t *testing.T) *Tree {
	file, err := os.Open("testdata/genomeProperties.txt")
	require.NoError(t, err)
	defer file.Close()

	tree, err := Parse(file)
	require.NoError(t, err)
	return tree
}

func TestParseHeader(t *testing.T) {
	tree := loadTestTree(t)
	require.Equal(t, 4, tree.Len())

	property := tree.Get("GenProp0002")
	require.NotNil(t, property)
	assert.Equal(t, "Chorismate biosynthesis via shikimate", property.Name)
	assert.Equal(t, "PATHWAY", property.Type)
	assert.Equal(t, 1, property.Threshold)
	assert.Equal(t, "Chorismate is made in seven steps from phosphoenolpyruvate and erythrose-4-phosphate.", property.Description)
	assert.Equal(t, "Curator notes.", property.PrivateNotes)

	require.Len(t, property.References, 2)
	assert.Equal(t, 10094612, property.References[0].PubMedID)
	assert.Equal(t, "The shikimate pathway: a metabolic tree with many branches.", property.References[0].Title)
	assert.Equal(t, 2, property.References[1].Number)

	require.Len(t, property.Databases, 3)
	assert.Equal(t, "Phenylalanine, tyrosine and tryptophan biosynthesis", property.Databases[0].RecordTitle)
	assert.Equal(t, "KEGG", property.Databases[0].DatabaseName)
	assert.Equal(t, []string{"map00400"}, property.Databases[0].RecordIDs)
}

func TestParseSteps(t *testing.T) {
	property := loadTestTree(t).Get("GenProp0002")
	require.Len(t, property.Steps, 4)

	first := property.Steps[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "DAHP synthase", first.Name())
	assert.True(t, first.Required())
	require.Len(t, first.FunctionalElements[0].Evidence, 2)

	evidence := first.FunctionalElements[0].Evidence[0]
	assert.True(t, evidence.Sufficient)
	assert.Equal(t, []string{"IPR006218"}, evidence.InterProIDs)
	assert.Equal(t, []string{"TIGR00034"}, evidence.ConsortiumIDs)
	assert.Equal(t, []string{"GO:0003849"}, evidence.GOTerms)

	third := property.Step(3)
	require.NotNil(t, third)
	assert.Len(t, third.FunctionalElements, 2)
	assert.False(t, property.Step(4).Required())
	assert.Nil(t, property.Step(9))
	assert.Len(t, property.RequiredSteps(), 3)
}

func TestTreeLinks(t *testing.T) {
	tree := loadTestTree(t)

	root := tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, "GenProp0065", root.ID)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "GenProp0002", root.Children[0].ID)

	// GenProp0003 is named both by an EV line and a PN line.
	transport := tree.Get("GenProp0003")
	assert.Len(t, transport.Parents, 1)

	assert.Nil(t, tree.Get("GenProp4242"))

	var leafIDs []string
	for _, leaf := range tree.Leafs() {
		leafIDs = append(leafIDs, leaf.ID)
	}
	assert.Equal(t, []string{"GenProp0002", "GenProp0003", "GenProp0999"}, leafIDs)
	assert.Contains(t, tree.ConsortiumSignatures(), "TIGR01357")
}

func TestInfoMergesDatabases(t *testing.T) {
	info := Info(loadTestTree(t).Get("GenProp0002"))

	assert.Equal(t, "Chorismate biosynthesis via shikimate", info.Name)
	assert.Equal(t, []int{10094612, 12345678}, info.PubMed)
	assert.Equal(t, []string{"map00400", "map01230"}, info.Databases["KEGG"])
	assert.Equal(t, []string{"PWY-6163"}, info.Databases["MetaCyc"])
}

func TestParseEmptyInput(t *testing.T) {
	tree, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
	assert.Nil(t, tree.Root())
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"bad threshold": "AC  GenProp0001\nTH  many\n//\n",
		"bad step":      "AC  GenProp0001\n--\nSN  one\n//\n",
		"missing AC":    "DE  nameless\n//\n",
		"orphan EV":     "AC  GenProp0001\n--\nEV  IPR000001;\n//\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(content))
			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr), "got %v", err)
		})
	}
}

func TestAssignments(t *testing.T) {
	tree := loadTestTree(t)

	cases := []struct {
		name    string
		matched []string
		pathway Assignment
		guild   Assignment
		root    Assignment
	}{
		{"nothing", nil, AssignmentNo, AssignmentNo, AssignmentNo},
		{"all required", []string{"TIGR00034", "TIGR01357", "PF01202"}, AssignmentYes, AssignmentNo, AssignmentPartial},
		{"above threshold", []string{"TIGR00034", "IPR002658"}, AssignmentPartial, AssignmentNo, AssignmentPartial},
		{"at threshold", []string{"PF00793"}, AssignmentNo, AssignmentNo, AssignmentNo},
		{"all optional", []string{"PF00005", "PF07690"}, AssignmentNo, AssignmentYes, AssignmentPartial},
		{"everything", []string{"TIGR00034", "TIGR01357", "PF01202", "PF00005", "PF07690"}, AssignmentYes, AssignmentYes, AssignmentYes},
		{"some optional", []string{"PF00005"}, AssignmentNo, AssignmentPartial, AssignmentPartial},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assigner := NewAssigner(tree, mapset.NewThreadUnsafeSet(c.matched...))
			assigner.AssignAll()

			assert.Equal(t, c.pathway, assigner.Property(tree.Get("GenProp0002")))
			assert.Equal(t, c.guild, assigner.Property(tree.Get("GenProp0003")))
			assert.Equal(t, c.root, assigner.Property(tree.Get("GenProp0065")))
			assert.Equal(t, AssignmentNo, assigner.Property(tree.Get("GenProp0999")))
		})
	}
}

func TestStepAssignment(t *testing.T) {
	tree := loadTestTree(t)
	assigner := NewAssigner(tree, mapset.NewThreadUnsafeSet("TIGR02688"))

	assignment, ok := assigner.Step(tree.Get("GenProp0002"), 3)
	assert.True(t, ok)
	assert.Equal(t, AssignmentYes, assignment)

	assignment, ok = assigner.Step(tree.Get("GenProp0002"), 1)
	assert.True(t, ok)
	assert.Equal(t, AssignmentNo, assignment)

	_, ok = assigner.Step(tree.Get("GenProp0002"), 7)
	assert.False(t, ok)
}

func TestAssignmentCycle(t *testing.T) {
	content := "AC  GenProp0001\n--\nSN  1\nID  a\nRQ  1\nEV  GenProp0002;\n//\n" +
		"AC  GenProp0002\n--\nSN  1\nID  b\nRQ  1\nEV  GenProp0001;\n//\n"
	tree, err := Parse(strings.NewReader(content))
	require.NoError(t, err)

	assigner := NewAssigner(tree, nil)
	assert.Equal(t, AssignmentNo, assigner.Property(tree.Get("GenProp0001")))
}

func TestAssignFromRequiredSteps(t *testing.T) {
	yes, no := AssignmentYes, AssignmentNo
	assert.Equal(t, AssignmentYes, AssignFromRequiredSteps([]Assignment{yes, yes}, 0))
	assert.Equal(t, AssignmentPartial, AssignFromRequiredSteps([]Assignment{yes, no}, 0))
	assert.Equal(t, AssignmentNo, AssignFromRequiredSteps([]Assignment{yes, no, no}, 1))
	assert.Equal(t, AssignmentNo, AssignFromAllSteps(nil))
}
