// Package engine composes lazy plans from a source descriptor and an
// operation pipeline, and evaluates them against streaming columnar
// batches. Plan identity is a deterministic fingerprint of
// (descriptor, operations); execution never begins until a collect or
// stream is requested.
package engine

import (
	"github.com/cespare/xxhash/v2"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/internal/binenc"
	"github.com/go-dafr/dafr/operations"
)

// Plan is a validated, unexecuted description of a computation: a source
// scan followed by the pipeline's operations in order.
type Plan struct {
	desc    *datasource.Descriptor
	ops     []operations.Operation
	initial dafr.Schema
	schema  dafr.Schema
}

// Build opens the source schema and folds each operation over it in
// order, validating every step. Any validation failure aborts with
// InvalidPlan carrying the offending operation's index; a failure to probe
// the source schema is returned as is.
func Build(desc *datasource.Descriptor, ops []operations.Operation) (*Plan, error) {
	initial, err := ProbeSchema(desc)
	if err != nil {
		return nil, err
	}
	return BuildWithSchema(desc, initial, ops)
}

// BuildWithSchema is Build for callers that already know the source
// schema; it performs no I/O.
func BuildWithSchema(desc *datasource.Descriptor, initial dafr.Schema, ops []operations.Operation) (*Plan, error) {
	current := initial
	for i, op := range ops {
		next, err := operations.Validate(op, current)
		if err != nil {
			return nil, errors.InvalidPlanError{Index: i, Reason: err.Error()}
		}
		current = next
	}
	return &Plan{desc: desc, ops: ops, initial: initial, schema: current}, nil
}

// Schema returns the schema of the plan's output
func (p *Plan) Schema() dafr.Schema { return p.schema }

// Descriptor returns the plan's source descriptor
func (p *Plan) Descriptor() *datasource.Descriptor { return p.desc }

// Operations returns the plan's pipeline
func (p *Plan) Operations() []operations.Operation { return p.ops }

// Hash returns the plan's identity as a 64-bit fingerprint
func (p *Plan) Hash() uint64 { return Hash(p.desc, p.ops) }

// Fingerprint serializes (descriptor, operations) in the stable tagged
// form used for plan identity.
func Fingerprint(desc *datasource.Descriptor, ops []operations.Operation) []byte {
	b := desc.AppendBinary(nil)
	b = binenc.AppendUint32(b, uint32(len(ops)))
	for _, op := range ops {
		b = op.AppendBinary(b)
	}
	return b
}

// Hash computes the deterministic plan identity of (descriptor,
// operations). Equal inputs yield equal hashes.
func Hash(desc *datasource.Descriptor, ops []operations.Operation) uint64 {
	return xxhash.Sum64(Fingerprint(desc, ops))
}
