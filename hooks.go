package idcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A read found a live entry (value or cached nil).
	Hit(key string)

	// A read found nothing usable and called the loader.
	Miss(key string)

	// The cache was skipped entirely and the loader called directly.
	// reason ∈ {"transaction", "disabled", "no_backend"}
	Bypass(key, reason string)

	// A write-back lost to a concurrent writer or an invalidation.
	LostRace(key string)

	// The stored bytes could not be decoded; the slot is treated as empty
	// and overwritten on repopulation.
	CorruptEntry(key string)

	// Backend returned an error. op ∈ {"get", "save", "tombstone"}
	BackendError(op, key string, err error)

	// A tombstone write failed during invalidation. Readers may see the
	// previous value until it expires or is evicted.
	TombstoneFailed(key string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                         {}
func (NopHooks) Miss(string)                        {}
func (NopHooks) Bypass(string, string)              {}
func (NopHooks) LostRace(string)                    {}
func (NopHooks) CorruptEntry(string)                {}
func (NopHooks) BackendError(string, string, error) {}
func (NopHooks) TombstoneFailed(string, error)      {}
