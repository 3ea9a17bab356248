package results

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/micromeda/micromeda-server/genprop"
)

const snapshotVersion = 1

// Snapshot is the serialized form of Results kept in the cache. Only the
// inputs are stored; assignments are recomputed against the tree on load.
type Snapshot struct {
	Version   int
	Samples   []string
	Matches   []Match
	Sequences map[string]map[string]string
}

// Snapshot captures the inputs of the results.
func (r *Results) Snapshot() *Snapshot {
	return &Snapshot{
		Version:   snapshotVersion,
		Samples:   r.sampleNames,
		Matches:   r.matches,
		Sequences: r.sequences,
	}
}

// Serialize encodes the results in MessagePack.
func (r *Results) Serialize() ([]byte, error) {
	return r.Snapshot().MarshalMsg(nil)
}

// Deserialize decodes serialized results and recomputes them against tree.
func Deserialize(data []byte, tree *genprop.Tree) (*Results, error) {
	snapshot := &Snapshot{}
	if _, err := snapshot.UnmarshalMsg(data); err != nil {
		return nil, err
	}
	if snapshot.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported results snapshot version %d", snapshot.Version)
	}
	return New(tree, snapshot.Samples, snapshot.Matches, snapshot.Sequences), nil
}

// MarshalMsg implements msgp.Marshaler.
func (s *Snapshot) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, s.Msgsize())

	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "version")
	o = msgp.AppendInt(o, s.Version)

	o = msgp.AppendString(o, "samples")
	o = msgp.AppendArrayHeader(o, uint32(len(s.Samples)))
	for _, sample := range s.Samples {
		o = msgp.AppendString(o, sample)
	}

	o = msgp.AppendString(o, "matches")
	o = msgp.AppendArrayHeader(o, uint32(len(s.Matches)))
	for _, match := range s.Matches {
		o = msgp.AppendArrayHeader(o, 4)
		o = msgp.AppendString(o, match.SampleName)
		o = msgp.AppendString(o, match.ProteinName)
		o = msgp.AppendString(o, match.SignatureAccession)
		o = msgp.AppendFloat64(o, match.ExpectedValue)
	}

	o = msgp.AppendString(o, "sequences")
	o = msgp.AppendMapHeader(o, uint32(len(s.Sequences)))
	for sample, proteins := range s.Sequences {
		o = msgp.AppendString(o, sample)
		o = msgp.AppendMapHeader(o, uint32(len(proteins)))
		for protein, sequence := range proteins {
			o = msgp.AppendString(o, protein)
			o = msgp.AppendString(o, sequence)
		}
	}
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (s *Snapshot) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var fields uint32
	fields, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return nil, msgp.WrapError(err)
	}

	for ; fields > 0; fields-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return nil, msgp.WrapError(err)
		}

		switch msgp.UnsafeString(field) {
		case "version":
			s.Version, bts, err = msgp.ReadIntBytes(bts)
			if err != nil {
				return nil, msgp.WrapError(err, "Version")
			}
		case "samples":
			bts, err = s.unmarshalSamples(bts)
			if err != nil {
				return nil, msgp.WrapError(err, "Samples")
			}
		case "matches":
			bts, err = s.unmarshalMatches(bts)
			if err != nil {
				return nil, msgp.WrapError(err, "Matches")
			}
		case "sequences":
			bts, err = s.unmarshalSequences(bts)
			if err != nil {
				return nil, msgp.WrapError(err, "Sequences")
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				return nil, msgp.WrapError(err)
			}
		}
	}
	return bts, nil
}

func (s *Snapshot) unmarshalSamples(bts []byte) ([]byte, error) {
	size, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, err
	}
	s.Samples = make([]string, size)
	for i := range s.Samples {
		s.Samples[i], bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return nil, msgp.WrapError(err, i)
		}
	}
	return bts, nil
}

func (s *Snapshot) unmarshalMatches(bts []byte) ([]byte, error) {
	size, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, err
	}
	s.Matches = make([]Match, size)
	for i := range s.Matches {
		var width uint32
		width, bts, err = msgp.ReadArrayHeaderBytes(bts)
		if err != nil {
			return nil, msgp.WrapError(err, i)
		}
		if width != 4 {
			return nil, msgp.ArrayError{Wanted: 4, Got: width}
		}
		match := &s.Matches[i]
		if match.SampleName, bts, err = msgp.ReadStringBytes(bts); err != nil {
			return nil, msgp.WrapError(err, i, "SampleName")
		}
		if match.ProteinName, bts, err = msgp.ReadStringBytes(bts); err != nil {
			return nil, msgp.WrapError(err, i, "ProteinName")
		}
		if match.SignatureAccession, bts, err = msgp.ReadStringBytes(bts); err != nil {
			return nil, msgp.WrapError(err, i, "SignatureAccession")
		}
		if match.ExpectedValue, bts, err = msgp.ReadFloat64Bytes(bts); err != nil {
			return nil, msgp.WrapError(err, i, "ExpectedValue")
		}
	}
	return bts, nil
}

func (s *Snapshot) unmarshalSequences(bts []byte) ([]byte, error) {
	samples, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return nil, err
	}
	s.Sequences = make(map[string]map[string]string, samples)
	for ; samples > 0; samples-- {
		var sample string
		sample, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return nil, err
		}
		var proteins uint32
		proteins, bts, err = msgp.ReadMapHeaderBytes(bts)
		if err != nil {
			return nil, msgp.WrapError(err, sample)
		}
		sequences := make(map[string]string, proteins)
		for ; proteins > 0; proteins-- {
			var protein, sequence string
			if protein, bts, err = msgp.ReadStringBytes(bts); err != nil {
				return nil, msgp.WrapError(err, sample)
			}
			if sequence, bts, err = msgp.ReadStringBytes(bts); err != nil {
				return nil, msgp.WrapError(err, sample, protein)
			}
			sequences[protein] = sequence
		}
		s.Sequences[sample] = sequences
	}
	return bts, nil
}

// Msgsize returns an upper bound estimate of the encoded size.
func (s *Snapshot) Msgsize() int {
	size := msgp.MapHeaderSize + 4*msgp.StringPrefixSize + 40 + msgp.IntSize
	size += msgp.ArrayHeaderSize
	for _, sample := range s.Samples {
		size += msgp.StringPrefixSize + len(sample)
	}
	size += msgp.ArrayHeaderSize
	for _, match := range s.Matches {
		size += msgp.ArrayHeaderSize + 3*msgp.StringPrefixSize + msgp.Float64Size +
			len(match.SampleName) + len(match.ProteinName) + len(match.SignatureAccession)
	}
	size += msgp.MapHeaderSize
	for sample, proteins := range s.Sequences {
		size += msgp.StringPrefixSize + len(sample) + msgp.MapHeaderSize
		for protein, sequence := range proteins {
			size += 2*msgp.StringPrefixSize + len(protein) + len(sequence)
		}
	}
	return size
}
