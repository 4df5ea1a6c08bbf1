// Package session holds the serializable editing state: the source
// descriptor, the operation pipeline, the undo history and opaque UI
// hints. Only (source, ops) participates in plan identity; history and
// hints never do.
package session

import (
	"fmt"

	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/operations"
)

// Session is the whole editing state. Materialized frames are never part
// of it; every mutation is an operation-list edit.
type Session struct {
	Source  *datasource.Descriptor
	Ops     []operations.Operation
	UIHints map[string]string

	// operations popped by Undo, in pop order
	undo []operations.Operation
}

// CreateSession is a factory for an empty Session
func CreateSession() *Session {
	return &Session{UIHints: map[string]string{}}
}

// Reset installs a new source and clears the pipeline and history; UI
// hints are kept
func (s *Session) Reset(source *datasource.Descriptor) {
	s.Source = source
	s.Ops = nil
	s.undo = nil
}

// Append adds a validated operation to the pipeline and clears the redo
// history.
func (s *Session) Append(op operations.Operation) {
	s.Ops = append(s.Ops, op)
	s.undo = nil
}

// Remove splices out the operation at index and clears the redo history
func (s *Session) Remove(index int) error {
	if index < 0 || index >= len(s.Ops) {
		return fmt.Errorf("invalid operation index %d", index)
	}
	s.Ops = append(s.Ops[:index], s.Ops[index+1:]...)
	s.undo = nil
	return nil
}

// Undo pops the last operation onto the undo stack. It returns false when
// the pipeline is empty.
func (s *Session) Undo() (operations.Operation, bool) {
	if len(s.Ops) == 0 {
		return operations.Operation{}, false
	}
	op := s.Ops[len(s.Ops)-1]
	s.Ops = s.Ops[:len(s.Ops)-1]
	s.undo = append(s.undo, op)
	return op, true
}

// PeekRedo returns the operation Redo would reapply
func (s *Session) PeekRedo() (operations.Operation, bool) {
	if len(s.undo) == 0 {
		return operations.Operation{}, false
	}
	return s.undo[len(s.undo)-1], true
}

// Redo pops the undo stack back onto the pipeline. The caller re-validates
// via PeekRedo before committing.
func (s *Session) Redo() (operations.Operation, bool) {
	op, ok := s.PeekRedo()
	if !ok {
		return op, false
	}
	s.undo = s.undo[:len(s.undo)-1]
	s.Ops = append(s.Ops, op)
	return op, true
}

// ClearPipeline empties the pipeline and the undo history
func (s *Session) ClearPipeline() {
	s.Ops = nil
	s.undo = nil
}

// ClearHistory drops the undo stack, as after loading persisted state
func (s *Session) ClearHistory() {
	s.undo = nil
}

// Descriptions returns the pipeline's description strings in order
func (s *Session) Descriptions() []string {
	out := make([]string, len(s.Ops))
	for i, op := range s.Ops {
		out[i] = op.String()
	}
	return out
}
