package hoard

// Op identifies the operation family of an outcome event.
type Op string

const (
	OpGet                 Op = "get"
	OpGetAll              Op = "get_all"
	OpPut                 Op = "put"
	OpPutAll              Op = "put_all"
	OpPutIfAbsent         Op = "put_if_absent"
	OpReplace             Op = "replace"
	OpRemove              Op = "remove"
	OpRemoveAll           Op = "remove_all"
	OpCompute             Op = "compute"
	OpComputeIfAbsent     Op = "compute_if_absent"
	OpBulkCompute         Op = "bulk_compute"
	OpBulkComputeIfAbsent Op = "bulk_compute_if_absent"
	OpEviction            Op = "eviction"
	OpExpiry              Op = "expiry"
	OpLoad                Op = "load"
	OpClear               Op = "clear"
)

// Result classifies how an operation concluded.
type Result string

const (
	ResultHit        Result = "hit"
	ResultMiss       Result = "miss"
	ResultHitLoader  Result = "hit_loader"
	ResultMissLoader Result = "miss_loader"
	ResultAdded      Result = "added"
	ResultUpdated    Result = "updated"
	ResultRemoved    Result = "removed"
	ResultEvicted    Result = "evicted"
	ResultExpired    Result = "expired"
	ResultSuccess    Result = "success"
	ResultFailure    Result = "failure"
)

// Event is a discrete outcome describing how one operation concluded.
// Key is nil for events that do not concern a single key, such as bulk
// operations and clears.
type Event struct {
	Op     Op
	Result Result
	Key    any
	Err    error
}

// Sink receives outcome events from stores and caches. Implementations
// must be safe for concurrent use and must not block: Record runs on
// the calling goroutine, so a slow sink stalls cache operations. Wrap
// slow sinks with an asynchronous buffer. A panic in Record is
// swallowed and never fails the operation that emitted the event.
type Sink interface {
	Record(Event)
}

type nopSink struct{}

func (nopSink) Record(Event) {}

// record guards a sink invocation against panics.
func record(sink Sink, ev Event) {
	defer func() {
		_ = recover()
	}()
	sink.Record(ev)
}
