package genprop

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError reports a malformed line of the flat file.
type ParseError struct {
	Line   int
	Marker string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("genome properties line %d (%s): %v", e.Line, e.Marker, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var stepMarkers = map[string]bool{
	"SN": true,
	"ID": true,
	"DN": true,
	"RQ": true,
	"EV": true,
	"TG": true,
}

// Parse reads a Genome Properties flat file and builds the property tree.
func Parse(reader io.Reader) (*Tree, error) {
	properties, err := ParseProperties(reader)
	if err != nil {
		return nil, err
	}
	return NewTree(properties), nil
}

// ParseProperties reads every record of a Genome Properties flat file.
func ParseProperties(reader io.Reader) ([]*GenomeProperty, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var properties []*GenomeProperty
	record := &recordParser{}
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(line, "//") {
			property, err := record.finish(lineNumber)
			if err != nil {
				return nil, err
			}
			if property != nil {
				properties = append(properties, property)
			}
			record = &recordParser{}
			continue
		}

		if strings.HasPrefix(line, "--") {
			record.startStepBlock()
			continue
		}

		marker, content := splitLine(line)
		if err := record.add(marker, content); err != nil {
			return nil, &ParseError{Line: lineNumber, Marker: marker, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// The last record is allowed to miss its terminating "//".
	property, err := record.finish(lineNumber)
	if err != nil {
		return nil, err
	}
	if property != nil {
		properties = append(properties, property)
	}

	return properties, nil
}

func splitLine(line string) (string, string) {
	if len(line) <= 2 {
		return line, ""
	}
	return line[:2], strings.TrimSpace(line[2:])
}

// recordParser accumulates the lines of a single record.
type recordParser struct {
	property *GenomeProperty

	step      *Step
	element   *FunctionalElement
	reference *LiteratureReference
	dbTitle   string
}

func (r *recordParser) current() *GenomeProperty {
	if r.property == nil {
		r.property = &GenomeProperty{}
	}
	return r.property
}

func (r *recordParser) add(marker, content string) error {
	property := r.current()

	if stepMarkers[marker] {
		return r.addStepLine(marker, content)
	}

	switch marker {
	case "AC":
		property.ID = content
	case "DE":
		property.Name = join(property.Name, content)
	case "TP":
		property.Type = content
	case "TH":
		threshold, err := strconv.Atoi(content)
		if err != nil {
			return fmt.Errorf("invalid threshold %q", content)
		}
		property.Threshold = threshold
	case "PN":
		property.parentIDs = append(property.parentIDs, splitList(content)...)
	case "PU":
		property.Public = strings.EqualFold(content, "YES") || strings.EqualFold(content, "TRUE")
	case "RN":
		number, err := strconv.Atoi(strings.Trim(content, "[] "))
		if err != nil {
			return fmt.Errorf("invalid reference number %q", content)
		}
		r.flushReference()
		r.reference = &LiteratureReference{Number: number}
	case "RM":
		pubmed, err := strconv.Atoi(strings.TrimSuffix(content, "."))
		if err != nil {
			return fmt.Errorf("invalid pubmed id %q", content)
		}
		r.currentReference().PubMedID = pubmed
	case "RT":
		reference := r.currentReference()
		reference.Title = join(reference.Title, content)
	case "RA":
		reference := r.currentReference()
		reference.Authors = join(reference.Authors, content)
	case "RL":
		reference := r.currentReference()
		reference.Citation = join(reference.Citation, content)
	case "DC":
		r.dbTitle = join(r.dbTitle, content)
	case "DR":
		fields := splitList(content)
		if len(fields) == 0 {
			return fmt.Errorf("empty database reference")
		}
		property.Databases = append(property.Databases, DatabaseReference{
			RecordTitle:  r.dbTitle,
			DatabaseName: fields[0],
			RecordIDs:    fields[1:],
		})
		r.dbTitle = ""
	case "CC":
		property.Description = join(property.Description, content)
	case "**":
		property.PrivateNotes = join(property.PrivateNotes, content)
	}
	return nil
}

func (r *recordParser) addStepLine(marker, content string) error {
	if marker == "SN" {
		number, err := strconv.Atoi(content)
		if err != nil {
			return fmt.Errorf("invalid step number %q", content)
		}
		r.flushStep()
		r.step = &Step{Number: number}
		return nil
	}

	if r.step == nil {
		return fmt.Errorf("%s line outside of a step", marker)
	}

	if marker == "ID" {
		r.flushElement()
		r.element = &FunctionalElement{ID: content}
		return nil
	}

	if r.element == nil {
		r.element = &FunctionalElement{}
	}

	switch marker {
	case "DN":
		r.element.Name = join(r.element.Name, content)
	case "RQ":
		required, err := strconv.Atoi(content)
		if err != nil {
			return fmt.Errorf("invalid required flag %q", content)
		}
		r.element.Required = required != 0
	case "EV":
		r.element.Evidence = append(r.element.Evidence, parseEvidence(content))
	case "TG":
		if len(r.element.Evidence) == 0 {
			r.element.Evidence = append(r.element.Evidence, &Evidence{})
		}
		last := r.element.Evidence[len(r.element.Evidence)-1]
		last.GOTerms = append(last.GOTerms, splitList(content)...)
	}
	return nil
}

func parseEvidence(content string) *Evidence {
	evidence := &Evidence{}
	for _, field := range splitList(content) {
		switch {
		case strings.EqualFold(field, "sufficient"):
			evidence.Sufficient = true
		case IsPropertyID(field):
			evidence.PropertyIDs = append(evidence.PropertyIDs, field)
		case strings.HasPrefix(field, "IPR"):
			evidence.InterProIDs = append(evidence.InterProIDs, field)
		default:
			evidence.ConsortiumIDs = append(evidence.ConsortiumIDs, field)
		}
	}
	return evidence
}

func (r *recordParser) startStepBlock() {
	r.flushReference()
	r.flushStep()
}

func (r *recordParser) currentReference() *LiteratureReference {
	if r.reference == nil {
		r.reference = &LiteratureReference{}
	}
	return r.reference
}

func (r *recordParser) flushReference() {
	if r.reference != nil {
		r.current().References = append(r.current().References, *r.reference)
		r.reference = nil
	}
}

func (r *recordParser) flushElement() {
	if r.element != nil && r.step != nil {
		r.step.FunctionalElements = append(r.step.FunctionalElements, r.element)
	}
	r.element = nil
}

func (r *recordParser) flushStep() {
	r.flushElement()
	if r.step != nil {
		r.current().Steps = append(r.current().Steps, r.step)
	}
	r.step = nil
}

// finish closes the record. A record with no lines at all yields nil.
func (r *recordParser) finish(line int) (*GenomeProperty, error) {
	if r.property == nil {
		return nil, nil
	}
	r.flushReference()
	r.flushStep()

	if r.property.ID == "" {
		return nil, &ParseError{Line: line, Marker: "//", Err: fmt.Errorf("record without AC line")}
	}
	return r.property, nil
}

func join(current, content string) string {
	if current == "" {
		return content
	}
	if content == "" {
		return current
	}
	return current + " " + content
}

func splitList(content string) []string {
	var fields []string
	for _, field := range strings.Split(content, ";") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}
