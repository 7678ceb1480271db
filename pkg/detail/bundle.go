package detail

import "github.com/Sternrassler/comics-catalog-client/pkg/catalog"

// Kind identifies the type of a related-resource fetch.
type Kind string

const (
	// KindCreator fetches the item's creators collection
	KindCreator Kind = "creator"

	// KindVariant fetches one variant resource
	KindVariant Kind = "variant"
)

// State is the lifecycle state of a single sub-fetch.
type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// SubFetch records one related-resource request of a Session.
type SubFetch struct {
	Kind  Kind
	URI   string
	State State
	Error string
}

// Bundle is the merged detail view of an item.
//
// Bundles delivered on Session.Updates are snapshots; they never change
// after being sent and may be kept by the receiver.
type Bundle struct {
	Primary catalog.Item

	// Creator is nil until the creator fetch succeeds, and stays nil when it fails
	Creator      *catalog.Creator
	CreatorError string

	// Variants holds successful variant fetches in completion order
	Variants []catalog.Item

	Fetches []SubFetch

	// Settled is true once every sub-fetch has succeeded or failed
	Settled bool

	// Err is set when the primary item could not be loaded or the session
	// was closed before settling
	Err error
}

// Pending returns the number of sub-fetches still outstanding.
func (b Bundle) Pending() int {
	n := 0
	for _, f := range b.Fetches {
		if f.State == StatePending {
			n++
		}
	}
	return n
}

// Failed returns the sub-fetches that failed.
func (b Bundle) Failed() []SubFetch {
	var out []SubFetch
	for _, f := range b.Fetches {
		if f.State == StateFailed {
			out = append(out, f)
		}
	}
	return out
}

func (b Bundle) clone() Bundle {
	out := b
	out.Variants = append([]catalog.Item(nil), b.Variants...)
	out.Fetches = append([]SubFetch(nil), b.Fetches...)
	if b.Creator != nil {
		c := *b.Creator
		out.Creator = &c
	}
	return out
}
