package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/operations"
)

func sampleOps() []operations.Operation {
	return []operations.Operation{
		{Type: operations.Filter, Column: "city", Filter: operations.Eq, Value: "NY"},
		{Type: operations.Sort, Column: "age", Descending: true},
		{Type: operations.Limit, N: 1},
	}
}

func TestUndoRedoRestoresPipeline(t *testing.T) {
	s := CreateSession()
	for _, op := range sampleOps() {
		s.Append(op)
	}
	original := append([]operations.Operation(nil), s.Ops...)

	_, ok := s.Undo()
	require.True(t, ok)
	require.Equal(t, 2, len(s.Ops))

	_, ok = s.Redo()
	require.True(t, ok)
	require.Equal(t, len(original), len(s.Ops))
	for i := range original {
		require.True(t, original[i].Equals(s.Ops[i]))
	}
}

func TestUndoOnEmptyPipeline(t *testing.T) {
	s := CreateSession()
	_, ok := s.Undo()
	require.False(t, ok)
	_, ok = s.Redo()
	require.False(t, ok)
}

func TestAppendClearsRedo(t *testing.T) {
	s := CreateSession()
	for _, op := range sampleOps() {
		s.Append(op)
	}
	s.Undo()
	s.Append(operations.Operation{Type: operations.Limit, N: 5})
	_, ok := s.Redo()
	require.False(t, ok)
}

func TestRemoveClearsRedo(t *testing.T) {
	s := CreateSession()
	for _, op := range sampleOps() {
		s.Append(op)
	}
	s.Undo()
	require.Nil(t, s.Remove(0))
	_, ok := s.Redo()
	require.False(t, ok)
	require.NotNil(t, s.Remove(10))
}

func TestClearPipeline(t *testing.T) {
	s := CreateSession()
	for _, op := range sampleOps() {
		s.Append(op)
	}
	s.Undo()
	s.ClearPipeline()
	require.Equal(t, 0, len(s.Ops))
	_, ok := s.Redo()
	require.False(t, ok)
}

func TestDescriptions(t *testing.T) {
	s := CreateSession()
	for _, op := range sampleOps() {
		s.Append(op)
	}
	require.Equal(t, []string{
		"Filter: city = NY",
		"Sort: age DESC",
		"Limit: 1",
	}, s.Descriptions())
}

func testDescriptor() *datasource.Descriptor {
	return &datasource.Descriptor{
		Path:    "/data/people.csv",
		Format:  datasource.CSV,
		Options: datasource.DefaultOptions(datasource.CSV),
	}
}
