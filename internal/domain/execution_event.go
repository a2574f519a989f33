package domain

// ExecutionStage names a pipeline stage of a swap attempt.
type ExecutionStage string

const (
	StageQuote   ExecutionStage = "quote"
	StageBuild   ExecutionStage = "build"
	StageSign    ExecutionStage = "sign"
	StageSubmit  ExecutionStage = "submit"
	StageConfirm ExecutionStage = "confirm"
)

// Execution event outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeError         = "error"
	OutcomeCancelled     = "cancelled"
	OutcomeIndeterminate = "indeterminate"
)

// ExecutionEvent is one stage outcome of a swap attempt, recorded for analytics.
// Append-only; never updated after insert.
type ExecutionEvent struct {
	EventID         string
	AttemptID       string
	SessionID       string
	Stage           ExecutionStage
	Outcome         string
	ErrorKind       string // Kind of the failure, empty on success
	Source          string // quote source
	Strategy        string // build strategy
	WalletKind      string
	InputMint       string
	OutputMint      string
	InputAmountRaw  uint64
	OutputAmountRaw uint64
	Signature       string
	LatencyMs       uint64
	TimestampMs     int64
}
