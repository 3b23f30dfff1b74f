package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldRoomID       = "room_id"
	FieldExpenseID    = "expense_id"
	FieldAmount       = "amount"
	FieldPayer        = "payer"
	FieldParticipants = "participants"
	FieldExpenses     = "expenses"
	FieldBalances     = "balances"
	FieldPayments     = "payments"
	FieldOutstanding  = "outstanding"
	FieldCached       = "cached"
)

const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentSettlement = "settlement"
	ComponentExpense    = "expense"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
)

const (
	OpSettle   = "settle"
	OpRecord   = "record"
	OpList     = "list"
	OpExport   = "export"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpRefresh  = "refresh"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeDatabase   = "database_error"
	ErrorTypeNetwork    = "network_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeInternal   = "internal_error"
)

// Fields collects key/value pairs in insertion order.
type Fields struct {
	kv []any
}

func NewFields() *Fields {
	return &Fields{}
}

func (f *Fields) Add(key string, value any) *Fields {
	f.kv = append(f.kv, key, value)
	return f
}

func (f *Fields) WithOperation(op string) *Fields { return f.Add(FieldOperation, op) }

func (f *Fields) WithRoom(roomID string) *Fields { return f.Add(FieldRoomID, roomID) }

func (f *Fields) WithError(err error) *Fields {
	if err != nil {
		f.Add(FieldError, err.Error())
	}
	return f
}

func (f *Fields) WithExpense(id int64, amount int64, payer string, participants int) *Fields {
	return f.Add(FieldExpenseID, id).
		Add(FieldAmount, amount).
		Add(FieldPayer, payer).
		Add(FieldParticipants, participants)
}

func (f *Fields) WithHTTP(method, path string, status int, durationMs int64) *Fields {
	return f.Add(FieldMethod, method).
		Add(FieldPath, path).
		Add(FieldStatusCode, status).
		Add(FieldDuration, durationMs)
}

func (f *Fields) ToSlice() []any {
	return append([]any(nil), f.kv...)
}
