package resolver

// EventType enumerates negotiation progress events.
type EventType string

const (
	// EventImport reports documents being supplied.
	EventImport EventType = "import"
	// EventTableSchemas reports tables being inspected.
	EventTableSchemas EventType = "table_schemas"
	// EventSQLBlock reports an SQL block being described.
	EventSQLBlock EventType = "sql_block"
	// EventRun reports a query being executed.
	EventRun EventType = "run"
	// EventComplete reports the final artifact.
	EventComplete EventType = "complete"
	// EventError reports a terminal failure.
	EventError EventType = "error"
)

// Event is a progress notification for the UI.
// Only a subset of fields is set depending on Type.
type Event struct {
	Type  EventType
	Round int

	// Common textual message
	Message string
	// Items names the documents or tables involved
	Items      []string
	Connection string
}

// Observer receives events in order from the resolving goroutine.
type Observer func(Event)
