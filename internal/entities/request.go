package entities

// Request describes the request a visibility rule is evaluated for
type Request struct {
	Route      string                 // Route name (e.g., "entity.node.canonical")
	URL        string                 // Request URL including the query string
	Method     string                 // HTTP method
	Attributes map[string]interface{} // Free-form attributes (e.g., "node_type")
}
