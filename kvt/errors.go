package kvt

import (
	"errors"
)

var (
	// ErrNotInitialized indicates that the engine was not initialized
	// or was already shut down
	ErrNotInitialized = errors.New("kvt is not initialized")
	// ErrTableAlreadyExists is returned by CreateTable when a table
	// with the given name already exists
	ErrTableAlreadyExists = errors.New("table already exists")
	// ErrTableNotFound is returned when a table id or name does not
	// refer to a known table
	ErrTableNotFound = errors.New("table not found")
	// ErrInvalidPartitionMethod is returned by CreateTable when the
	// partition method is not "hash" or "range"
	ErrInvalidPartitionMethod = errors.New("partition method must be \"hash\" or \"range\"")
	// ErrTransactionNotFound is returned when a transaction id does not
	// refer to a live transaction
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionAlreadyRunning is returned by Begin under the
	// serialized scheme when another transaction is live
	ErrTransactionAlreadyRunning = errors.New("another transaction is already running")
	// ErrKeyNotFound is returned when a key does not exist in the table
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyIsDeleted is returned when a key was deleted by the
	// current transaction
	ErrKeyIsDeleted = errors.New("key is deleted in this transaction")
	// ErrKeyIsLocked is returned when a key is locked by another
	// transaction
	ErrKeyIsLocked = errors.New("key is locked by another transaction")
	// ErrTransactionHasStaleData is returned by Commit when optimistic
	// validation detects a concurrent modification
	ErrTransactionHasStaleData = errors.New("transaction has stale data")
	// ErrOneShotWriteNotAllowed is returned when a write outside a
	// transaction is not permitted by the concurrency scheme
	ErrOneShotWriteNotAllowed = errors.New("one-shot writes require a transaction")
	// ErrOneShotDeleteNotAllowed is returned when a delete outside a
	// transaction is not permitted by the concurrency scheme
	ErrOneShotDeleteNotAllowed = errors.New("one-shot deletes require a transaction")
	// ErrBatchNotFullySuccess is returned by BatchExecute when at least
	// one operation failed. The caller must inspect the per-op results.
	ErrBatchNotFullySuccess = errors.New("batch did not fully succeed")
	// ErrNotRangePartitioned is returned by Scan on a hash-partitioned
	// table
	ErrNotRangePartitioned = errors.New("table is not range partitioned")
)

// Code identifies a failure class at the engine boundary. Every error
// returned by the engine maps to exactly one code. Codes are stable;
// error messages are not.
type Code int32

const (
	// CodeSuccess indicates that the operation completed successfully
	CodeSuccess Code = iota
	// CodeNotInitialized corresponds to ErrNotInitialized
	CodeNotInitialized
	// CodeTableAlreadyExists corresponds to ErrTableAlreadyExists
	CodeTableAlreadyExists
	// CodeTableNotFound corresponds to ErrTableNotFound
	CodeTableNotFound
	// CodeInvalidPartitionMethod corresponds to ErrInvalidPartitionMethod
	CodeInvalidPartitionMethod
	// CodeTransactionNotFound corresponds to ErrTransactionNotFound
	CodeTransactionNotFound
	// CodeTransactionAlreadyRunning corresponds to ErrTransactionAlreadyRunning
	CodeTransactionAlreadyRunning
	// CodeKeyNotFound corresponds to ErrKeyNotFound
	CodeKeyNotFound
	// CodeKeyIsDeleted corresponds to ErrKeyIsDeleted
	CodeKeyIsDeleted
	// CodeKeyIsLocked corresponds to ErrKeyIsLocked
	CodeKeyIsLocked
	// CodeTransactionHasStaleData corresponds to ErrTransactionHasStaleData
	CodeTransactionHasStaleData
	// CodeOneShotWriteNotAllowed corresponds to ErrOneShotWriteNotAllowed
	CodeOneShotWriteNotAllowed
	// CodeOneShotDeleteNotAllowed corresponds to ErrOneShotDeleteNotAllowed
	CodeOneShotDeleteNotAllowed
	// CodeBatchNotFullySuccess corresponds to ErrBatchNotFullySuccess
	CodeBatchNotFullySuccess
	// CodeUnknownError is the code for any error the engine does not
	// recognize
	CodeUnknownError
)

var codeNames = map[Code]string{
	CodeSuccess:                   "SUCCESS",
	CodeNotInitialized:            "KVT_NOT_INITIALIZED",
	CodeTableAlreadyExists:        "TABLE_ALREADY_EXISTS",
	CodeTableNotFound:             "TABLE_NOT_FOUND",
	CodeInvalidPartitionMethod:    "INVALID_PARTITION_METHOD",
	CodeTransactionNotFound:       "TRANSACTION_NOT_FOUND",
	CodeTransactionAlreadyRunning: "TRANSACTION_ALREADY_RUNNING",
	CodeKeyNotFound:               "KEY_NOT_FOUND",
	CodeKeyIsDeleted:              "KEY_IS_DELETED",
	CodeKeyIsLocked:               "KEY_IS_LOCKED",
	CodeTransactionHasStaleData:   "TRANSACTION_HAS_STALE_DATA",
	CodeOneShotWriteNotAllowed:    "ONE_SHOT_WRITE_NOT_ALLOWED",
	CodeOneShotDeleteNotAllowed:   "ONE_SHOT_DELETE_NOT_ALLOWED",
	CodeBatchNotFullySuccess:      "BATCH_NOT_FULLY_SUCCESS",
	CodeUnknownError:              "UNKNOWN_ERROR",
}

func (c Code) String() string {
	name, ok := codeNames[c]

	if !ok {
		return codeNames[CodeUnknownError]
	}

	return name
}

var errCodes = map[error]Code{
	ErrNotInitialized:            CodeNotInitialized,
	ErrTableAlreadyExists:        CodeTableAlreadyExists,
	ErrTableNotFound:             CodeTableNotFound,
	ErrInvalidPartitionMethod:    CodeInvalidPartitionMethod,
	ErrTransactionNotFound:       CodeTransactionNotFound,
	ErrTransactionAlreadyRunning: CodeTransactionAlreadyRunning,
	ErrKeyNotFound:               CodeKeyNotFound,
	ErrKeyIsDeleted:              CodeKeyIsDeleted,
	ErrKeyIsLocked:               CodeKeyIsLocked,
	ErrTransactionHasStaleData:   CodeTransactionHasStaleData,
	ErrOneShotWriteNotAllowed:    CodeOneShotWriteNotAllowed,
	ErrOneShotDeleteNotAllowed:   CodeOneShotDeleteNotAllowed,
	ErrBatchNotFullySuccess:      CodeBatchNotFullySuccess,
	// Scan on a hash table is a misuse of the table's declared
	// partition method, so it shares that method's code.
	ErrNotRangePartitioned: CodeInvalidPartitionMethod,
}

// CodeOf translates an error returned by the engine into its code.
// A nil error translates to CodeSuccess. Wrapped errors translate to
// the code of the sentinel they wrap.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}

	for sentinel, code := range errCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknownError
}
