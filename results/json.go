package results

import (
	"github.com/micromeda/micromeda-server/genprop"
)

// TreeJSON is the results document consumed by the web client.
type TreeJSON struct {
	SampleNames  []string `json:"sample_names"`
	PropertyTree *Node    `json:"property_tree"`
}

// Node is a property of the results tree.
type Node struct {
	ID       string                        `json:"id"`
	Name     string                        `json:"name"`
	Type     string                        `json:"type"`
	Enabled  bool                          `json:"enabled"`
	Result   map[string]genprop.Assignment `json:"result"`
	Steps    []StepNode                    `json:"steps"`
	Children []*Node                       `json:"children"`
}

// StepNode is a step of a property node.
type StepNode struct {
	Number   int                           `json:"number"`
	Name     string                        `json:"name"`
	Required bool                          `json:"required"`
	Result   map[string]genprop.Assignment `json:"result"`
}

// ToJSON builds the nested results tree from the root property.
func (r *Results) ToJSON() TreeJSON {
	document := TreeJSON{SampleNames: r.sampleNames}
	if document.SampleNames == nil {
		document.SampleNames = []string{}
	}
	if root := r.tree.Root(); root != nil {
		document.PropertyTree = r.node(root, map[string]bool{})
	}
	return document
}

// node renders a property and its descendants. A property already on the
// current path is not descended into again.
func (r *Results) node(property *genprop.GenomeProperty, path map[string]bool) *Node {
	path[property.ID] = true
	defer delete(path, property.ID)

	node := &Node{
		ID:       property.ID,
		Name:     property.Name,
		Type:     property.Type,
		Result:   map[string]genprop.Assignment{},
		Steps:    make([]StepNode, 0, len(property.Steps)),
		Children: []*Node{},
	}
	for _, sample := range r.sampleNames {
		node.Result[sample] = r.assigners[sample].Property(property)
	}

	for _, step := range property.Steps {
		stepNode := StepNode{
			Number:   step.Number,
			Name:     step.Name(),
			Required: step.Required(),
			Result:   map[string]genprop.Assignment{},
		}
		for _, sample := range r.sampleNames {
			assignment, _ := r.assigners[sample].Step(property, step.Number)
			stepNode.Result[sample] = assignment
		}
		node.Steps = append(node.Steps, stepNode)
	}

	for _, child := range property.Children {
		if path[child.ID] {
			continue
		}
		node.Children = append(node.Children, r.node(child, path))
	}
	return node
}
