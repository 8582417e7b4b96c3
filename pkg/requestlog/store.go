package requestlog

// Logger is the minimal interface for recording entries.
// The engine accepts this interface, so any sink can receive its history.
type Logger interface {
	Log(entry *Entry)
}

// Store defines the interface for request history storage.
type Store interface {
	Logger

	// Get retrieves an entry by ID.
	Get(id string) *Entry

	// List returns entries newest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of entries.
	Count() int
}

// Filter defines criteria for filtering entries. Zero fields are ignored.
type Filter struct {
	// Method filters by request method.
	Method string

	// Origin filters by normalized origin.
	Origin string

	// Path filters by path prefix.
	Path string

	// InterceptorID filters by the interceptor that answered.
	InterceptorID string

	// Outcome filters by settlement outcome.
	Outcome Outcome

	// StatusCode filters by response status code.
	StatusCode int

	// HasError filters by error presence.
	HasError *bool

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of entries to skip.
	Offset int
}

// Subscriber is a channel that receives new entries.
type Subscriber chan *Entry

// SubscribableStore extends Store with subscription support.
type SubscribableStore interface {
	Store

	// Subscribe registers a subscriber and returns it with an unsubscribe function.
	Subscribe() (Subscriber, func())
}

// Matches reports whether entry satisfies every criterion set on f.
func (f *Filter) Matches(entry *Entry) bool {
	if f == nil {
		return true
	}
	if f.Method != "" && entry.Method != f.Method {
		return false
	}
	if f.Origin != "" && entry.Origin != f.Origin {
		return false
	}
	if f.Path != "" && !hasPrefix(entry.Path, f.Path) {
		return false
	}
	if f.InterceptorID != "" && entry.InterceptorID != f.InterceptorID {
		return false
	}
	if f.Outcome != "" && entry.Outcome != f.Outcome {
		return false
	}
	if f.StatusCode != 0 && entry.ResponseStatus != f.StatusCode {
		return false
	}
	if f.HasError != nil && *f.HasError != (entry.Error != "") {
		return false
	}
	return true
}

func hasPrefix(path, prefix string) bool {
	return len(prefix) <= len(path) && path[:len(prefix)] == prefix
}
