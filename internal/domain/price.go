package domain

// PriceState tags the outcome of a live price lookup.
type PriceState string

const (
	// PriceAvailable means the lookup returned a usable per-gram price.
	PriceAvailable PriceState = "available"
	// PriceUnavailable means the remote answered but returned no usable value.
	PriceUnavailable PriceState = "unavailable"
	// PriceError means the lookup failed at the transport level or timed out.
	PriceError PriceState = "error"
)

// PriceQuote is the tri-state result of a gold price lookup. Unavailable and
// Error produce the same user-facing copy but are distinguished for logging.
type PriceQuote struct {
	State      PriceState
	PerGramINR float64
	Err        error
}

// Usable reports whether the quote carries a price that calculations may use.
func (q PriceQuote) Usable() bool {
	return q.State == PriceAvailable && q.PerGramINR > 0
}
