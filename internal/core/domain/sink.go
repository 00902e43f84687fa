package domain

// SinkID identifies a terminal operation.
type SinkID string

const (
	SinkCommandUnsafeEquals   SinkID = "command.unsafe.equals"
	SinkCommandUnsafeContains SinkID = "command.unsafe.contains"
	SinkCommandParameterized  SinkID = "command.parameterized"
	SinkCommandInsert         SinkID = "command.unsafe.insert"
	SinkCommandDelete         SinkID = "command.unsafe.delete"
	SinkRenderUnsafe          SinkID = "render.unsafe"
	SinkRenderSafe            SinkID = "render.safe"
)

// AllSinks lists every sink the module graph contains, reachable or not.
var AllSinks = []SinkID{
	SinkCommandUnsafeEquals,
	SinkCommandUnsafeContains,
	SinkCommandParameterized,
	SinkCommandInsert,
	SinkCommandDelete,
	SinkRenderUnsafe,
	SinkRenderSafe,
}

// Exposure classifies what a sink did with the value it received.
type Exposure string

const (
	ExposureSafe       Exposure = "safe"
	ExposureVulnerable Exposure = "vulnerable"
)

// Record is one row returned by the backend.
type Record map[string]any

// ExecResult is the outcome of a statement that returns no rows.
type ExecResult struct {
	LastInsertID int64
	RowsAffected int64
}

// SinkResult is produced once per dispatch call. Command sinks populate
// Records (and InsertedID for inserts); render sinks populate Markup.
type SinkResult struct {
	Sink     SinkID   `json:"sink,omitempty"`
	Exposure Exposure `json:"exposure,omitempty"`

	// Statement is the command text handed to the backend and Args the bound
	// parameters, if any.
	Statement string `json:"statement,omitempty"`
	Args      []any  `json:"args,omitempty"`

	Records    []Record `json:"records,omitempty"`
	InsertedID int64    `json:"inserted_id,omitempty"`
	Markup     string   `json:"markup,omitempty"`
}

// Empty reports whether no sink produced this result.
func (r SinkResult) Empty() bool {
	return r.Sink == ""
}
