package library

import "log/slog"

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func discardLogger() Logger { return slog.New(slog.DiscardHandler) }

const (
	logMsgMigrated     = "schema migrated"
	logMsgBorrowed     = "book borrowed"
	logMsgReturned     = "book returned"
	logMsgRejected     = "ledger operation rejected"
	logMsgDebtAccrued  = "debt accrued"
	logMsgTxFailed     = "transaction failed"
	logMsgRetrying     = "retrying after contention"
	logMsgStoreOpened  = "database opened"
	logMsgUserDeleted  = "user deleted"
	logMsgBookDeleted  = "book deleted"
	logMsgCopiesEdited = "total copies changed"
)

const (
	logAttrDriver    = "driver"
	logAttrVersion   = "version"
	logAttrUserID    = "user_id"
	logAttrBookID    = "book_id"
	logAttrLoanID    = "loan_id"
	logAttrDueDate   = "due_date"
	logAttrLateDays  = "late_days"
	logAttrAmount    = "amount"
	logAttrOperation = "operation"
	logAttrAttempt   = "attempt"
	logAttrError     = "error"
	logAttrTotal     = "total_copies"
)
