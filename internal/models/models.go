package models

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

type Phase string

const (
	PhasePlanning        Phase = "planning"
	PhaseSchemaIteration Phase = "schema_iteration"
	PhaseCodeGeneration  Phase = "code_generation"
	PhaseBatchParsing    Phase = "batch_parsing"
	PhasePackaging       Phase = "packaging"
)

// Phases lists the pipeline stages in execution order.
var Phases = []Phase{
	PhasePlanning,
	PhaseSchemaIteration,
	PhaseCodeGeneration,
	PhaseBatchParsing,
	PhasePackaging,
}

// Index returns the position of p in Phases, or -1 for an unknown phase.
func (p Phase) Index() int {
	for i, known := range Phases {
		if known == p {
			return i
		}
	}
	return -1
}

type SchemaMode string

const (
	SchemaAuto       SchemaMode = "auto"
	SchemaPredefined SchemaMode = "predefined"
)

type OutputMode string

const (
	OutputStructuredData OutputMode = "structured_data"
	OutputXPathOnly      OutputMode = "xpath_only"
)

type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
	FieldArray  FieldType = "array"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldInt, FieldFloat, FieldBool, FieldArray:
		return true
	}
	return false
}

type ArtifactKind string

const (
	ArtifactJSONL  ArtifactKind = "jsonl"
	ArtifactCSV    ArtifactKind = "csv"
	ArtifactZIP    ArtifactKind = "zip"
	ArtifactParser ArtifactKind = "parser"
)

func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactJSONL, ArtifactCSV, ArtifactZIP, ArtifactParser:
		return true
	}
	return false
}

// Binary reports whether the artifact is served as an opaque binary payload.
func (k ArtifactKind) Binary() bool {
	return k == ArtifactZIP
}

type Field struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FieldType   FieldType `json:"field_type"`
}

type GenerateRequest struct {
	HTMLContents    []string   `json:"html_contents,omitempty"`
	URLs            []string   `json:"urls,omitempty"`
	SchemaMode      SchemaMode `json:"schema_mode"`
	Fields          []Field    `json:"fields,omitempty"`
	OutputMode      OutputMode `json:"output_mode"`
	Domain          string     `json:"domain,omitempty"`
	IterationRounds int        `json:"iteration_rounds,omitempty"`
}

type GenerateResponse struct {
	Success        bool   `json:"success"`
	TaskID         string `json:"task_id"`
	Message        string `json:"message,omitempty"`
	WebsocketURL   string `json:"websocket_url,omitempty"`
	PollIntervalMs int    `json:"poll_interval_ms,omitempty"`
}

type TaskResult struct {
	Artifacts []ArtifactKind `json:"artifacts"`
	Files     int            `json:"files,omitempty"`
	Schema    map[string]any `json:"schema,omitempty"`
}

type StatusResponse struct {
	TaskID   string         `json:"task_id"`
	Status   TaskStatus     `json:"status"`
	Phase    Phase          `json:"phase,omitempty"`
	Progress float64        `json:"progress"`
	Message  string         `json:"message,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Result   *TaskResult    `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ResultsResponse struct {
	Success bool             `json:"success"`
	Count   int              `json:"count"`
	Results []map[string]any `json:"results"`
}

type SchemaResponse struct {
	Success bool           `json:"success"`
	Schema  map[string]any `json:"schema"`
	Fields  []Field        `json:"fields"`
	Count   int            `json:"count"`
}

type XPathRequest struct {
	HTMLContent     string   `json:"html_content,omitempty"`
	URL             string   `json:"url,omitempty"`
	HTMLContents    []string `json:"html_contents,omitempty"`
	URLs            []string `json:"urls,omitempty"`
	Fields          []Field  `json:"fields"`
	IterationRounds int      `json:"iteration_rounds,omitempty"`
}

type XPathField struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FieldType   FieldType `json:"field_type"`
	XPath       string    `json:"xpath"`
	ValueSample []string  `json:"value_sample"`
}

type XPathResponse struct {
	Success bool         `json:"success"`
	Fields  []XPathField `json:"fields"`
}

type APIConfig struct {
	APIKey          string `json:"api_key"`
	APIBase         string `json:"api_base"`
	IterationRounds int    `json:"iteration_rounds"`
}

// APIConfigUpdate carries only the keys to overwrite.
type APIConfigUpdate struct {
	APIKey          *string `json:"api_key,omitempty"`
	APIBase         *string `json:"api_base,omitempty"`
	IterationRounds *int    `json:"iteration_rounds,omitempty"`
}

type UpdateConfigResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Config  APIConfig `json:"config"`
}

type ErrorResponse struct {
	Request string `json:"request,omitempty"`
	Detail  string `json:"detail"`
}
