package gan

import (
	"fmt"
	"strings"
)

// Capability is an operation of the generative model whose sub-networks
// are all present.
type Capability string

const (
	Encode                     Capability = "encode"
	Generate                   Capability = "generate"
	ImageAdversarialTraining   Capability = "image-adversarial-training"
	EncoderAdversarialTraining Capability = "encoder-adversarial-training"
	Reconstruct                Capability = "reconstruct"
)

// Capabilities lists every capability in a stable order.
var Capabilities = []Capability{
	Encode,
	Generate,
	ImageAdversarialTraining,
	EncoderAdversarialTraining,
	Reconstruct,
}

// State is either Complete or Partial.
type State interface {
	isState()
	String() string
}

// Complete is the state of a model supporting every capability.
type Complete struct{}

// Partial is the state of a model with missing capabilities.
type Partial struct {
	Missing []Capability
}

func (Complete) isState() {}
func (Partial) isState()  {}

func (Complete) String() string { return "complete" }

func (p Partial) String() string {
	names := make([]string, len(p.Missing))
	for i, c := range p.Missing {
		names[i] = string(c)
	}
	return "partial (missing: " + strings.Join(names, ", ") + ")"
}

// Has reports whether c is not missing.
func (p Partial) Has(c Capability) bool {
	for _, m := range p.Missing {
		if m == c {
			return false
		}
	}
	return true
}

// IncompleteError is returned by an operation that needs a missing
// capability.
type IncompleteError struct {
	Op      string
	Missing []Capability
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("gan: %s unsupported by incomplete model, missing %v", e.Op, e.Missing)
}
