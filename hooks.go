package cellar

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The store calls them on hot paths.
type Hooks interface {
	// A collection member was skipped during a lenient sequence retrieval.
	// reason ∈ {"decode", "read"}
	MemberSkipped(path, reason string)

	// A lenient cell swallowed a persist failure (save or metadata touch).
	CellPersistDropped(key string, err error)

	// A cell's sidecar metadata record was rewritten.
	// reason ∈ {"missing", "corrupt", "lifetime_change"}
	MetaRewritten(path, reason string)

	// The in-memory provider returned ok=false on Set (backpressure/eviction).
	MemSetRejected(path string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) MemberSkipped(string, string)     {}
func (NopHooks) CellPersistDropped(string, error) {}
func (NopHooks) MetaRewritten(string, string)     {}
func (NopHooks) MemSetRejected(string)            {}
