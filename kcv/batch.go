package kcv

import (
	"github.com/ltzhang/kvtstore/kvt"
)

// ColumnOpType identifies a column-level batch operation.
type ColumnOpType int

const (
	// ColumnOpGet reads a column
	ColumnOpGet ColumnOpType = iota + 1
	// ColumnOpSet writes a column
	ColumnOpSet
	// ColumnOpDelete deletes a column
	ColumnOpDelete
)

// ColumnOp is a single column operation within a batch.
type ColumnOp struct {
	Type   ColumnOpType
	Key    []byte
	Column []byte
	Value  []byte
}

// ColumnOpResult is the outcome of a single column operation. Value
// is only set for successful gets.
type ColumnOpResult struct {
	Value []byte
	Err   error
}

// BatchExecute maps the column operations onto engine batch
// operations and runs them in order under one transaction id. Only
// the composite layout supports this: under the frame layout every
// operation is a read-modify-write of a whole frame, so batching
// would silently serialize and the store refuses instead.
//
// An operation with an invalid key or column fails the whole call
// before anything runs; an unknown operation type fails only that
// operation, as reported in its result. If any
// operation fails during execution the aggregate error is
// kvt.ErrBatchNotFullySuccess and the caller inspects the per-op
// results.
func (s *Store) BatchExecute(txID uint64, ops []ColumnOp) ([]ColumnOpResult, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	if s.layout != LayoutComposite {
		return nil, ErrBatchUnsupportedLayout
	}

	engineOps := make([]kvt.Op, len(ops))

	for i, op := range ops {
		composite, err := CompositeKey(op.Key, op.Column)

		if err != nil {
			return nil, err
		}

		engineOp := kvt.Op{TableID: s.tableID, Key: composite}

		switch op.Type {
		case ColumnOpGet:
			engineOp.Type = kvt.OpGet
		case ColumnOpSet:
			engineOp.Type = kvt.OpSet
			engineOp.Value = op.Value
		case ColumnOpDelete:
			engineOp.Type = kvt.OpDel
		}

		engineOps[i] = engineOp
	}

	engineResults, err := s.engine.BatchExecute(txID, engineOps)

	if engineResults == nil {
		return nil, err
	}

	results := make([]ColumnOpResult, len(engineResults))

	for i, engineResult := range engineResults {
		results[i] = ColumnOpResult{Value: engineResult.Value, Err: engineResult.Err}
	}

	return results, err
}
