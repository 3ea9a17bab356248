package genprop

import "sort"

// Tree indexes the properties of a flat file and links parents to children.
type Tree struct {
	properties []*GenomeProperty
	index      map[string]*GenomeProperty
}

// NewTree indexes the properties and links them. A child is linked when a
// step evidence or a PN line names an existing property.
func NewTree(properties []*GenomeProperty) *Tree {
	tree := &Tree{
		properties: properties,
		index:      make(map[string]*GenomeProperty, len(properties)),
	}
	for _, property := range properties {
		tree.index[property.ID] = property
	}

	for _, property := range properties {
		for _, childID := range property.ChildIDs() {
			if child, ok := tree.index[childID]; ok {
				link(property, child)
			}
		}
		for _, parentID := range property.parentIDs {
			if parent, ok := tree.index[parentID]; ok {
				link(parent, property)
			}
		}
	}
	return tree
}

func link(parent, child *GenomeProperty) {
	if parent == child {
		return
	}
	for _, existing := range parent.Children {
		if existing == child {
			return
		}
	}
	parent.Children = append(parent.Children, child)
	child.Parents = append(child.Parents, parent)
}

// Get returns the property with the given id, or nil when absent.
func (t *Tree) Get(id string) *GenomeProperty {
	return t.index[id]
}

// Properties returns every property in file order.
func (t *Tree) Properties() []*GenomeProperty {
	return t.properties
}

// Len returns the number of properties.
func (t *Tree) Len() int {
	return len(t.properties)
}

// Root returns the top of the hierarchy: the first parentless property
// that has children, else the first parentless property.
func (t *Tree) Root() *GenomeProperty {
	var firstOrphan *GenomeProperty
	for _, property := range t.properties {
		if len(property.Parents) > 0 {
			continue
		}
		if len(property.Children) > 0 {
			return property
		}
		if firstOrphan == nil {
			firstOrphan = property
		}
	}
	return firstOrphan
}

// Leafs returns the properties without children.
func (t *Tree) Leafs() []*GenomeProperty {
	var leafs []*GenomeProperty
	for _, property := range t.properties {
		if len(property.Children) == 0 {
			leafs = append(leafs, property)
		}
	}
	return leafs
}

// ConsortiumSignatures returns every signature accession named by any
// evidence of the tree, sorted.
func (t *Tree) ConsortiumSignatures() []string {
	seen := map[string]bool{}
	for _, property := range t.properties {
		for _, step := range property.Steps {
			for _, signature := range step.Signatures() {
				seen[signature] = true
			}
		}
	}
	signatures := make([]string, 0, len(seen))
	for signature := range seen {
		signatures = append(signatures, signature)
	}
	sort.Strings(signatures)
	return signatures
}

// PropertyInfo is the metadata the web client shows for a property.
type PropertyInfo struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	PubMed      []int               `json:"pubmed"`
	Databases   map[string][]string `json:"databases"`
}

// Info summarizes a property. Record ids of repeated database names are
// merged under one key.
func Info(property *GenomeProperty) PropertyInfo {
	info := PropertyInfo{
		Name:        property.Name,
		Description: property.Description,
		PubMed:      make([]int, 0, len(property.References)),
		Databases:   map[string][]string{},
	}
	for _, reference := range property.References {
		info.PubMed = append(info.PubMed, reference.PubMedID)
	}
	for _, database := range property.Databases {
		info.Databases[database.DatabaseName] = append(info.Databases[database.DatabaseName], database.RecordIDs...)
	}
	return info
}
