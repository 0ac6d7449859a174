// Package ids implements the globally-unique, totally-ordered
// operation identifiers used throughout the annotated-string CRDT, and
// the per-site clocks that issue them.
package ids

import "sync/atomic"

// ID is a 64-bit value: the high 16 bits are a site id, the low 48 bits
// are that site's logical clock at the moment the id was issued.
// Ordering is raw 64-bit magnitude, which happens to order first by
// site then by clock.
type ID uint64

const clockBits = 48

// Begin and End are reserved sentinels bracketing every document:
// Begin.doc_prev == Begin, End.doc_next == End, and no real character
// or attribute ever takes either value.
var (
	Begin = newID(0, 1)
	End   = newID(0, 2)
)

func newID(site uint16, clock uint64) ID {
	return ID(uint64(site)<<clockBits | (clock & (1<<clockBits - 1)))
}

// Site returns the 16-bit site field.
func (id ID) Site() uint16 { return uint16(uint64(id) >> clockBits) }

// Clock returns the 48-bit clock field.
func (id ID) Clock() uint64 { return uint64(id) & (1<<clockBits - 1) }

// Less reports whether id sorts before other under raw magnitude order.
func (id ID) Less(other ID) bool { return id < other }

var siteIDGen uint32 = 1

// nextSiteID assigns site ids to new sites in process-lifetime order,
// starting at 1 (0 is reserved).
func nextSiteID() uint16 {
	return uint16(atomic.AddUint32(&siteIDGen, 1) - 1)
}

// Site is an id-issuing authority: a 16-bit site identifier paired with
// a monotonically increasing 48-bit clock. Distinct sites constructed
// via NewSite get distinct, increasing ids; a caller that wants a
// specific id (e.g. restoring a persisted site) uses NewSiteWithID.
type Site struct {
	id    uint16
	clock uint64 // atomic
}

// NewSite allocates a fresh site with the next process-lifetime id.
func NewSite() *Site {
	return &Site{id: nextSiteID()}
}

// NewSiteWithID constructs a site with an explicit, caller-chosen id.
// id must not be 0 (the reserved sentinel site).
func NewSiteWithID(id uint16) *Site {
	if id == 0 {
		panic("ids: site id 0 is reserved")
	}
	return &Site{id: id}
}

// SiteID returns this site's 16-bit identifier.
func (s *Site) SiteID() uint16 { return s.id }

// Generate issues one fresh id.
func (s *Site) Generate() ID {
	c := atomic.AddUint64(&s.clock, 1) - 1
	return newID(s.id, c)
}

// GenerateBlock issues n consecutive ids in one atomic bump and returns
// the first one; the caller may derive the rest by incrementing the
// clock field of the result n-1 times.
func (s *Site) GenerateBlock(n uint64) ID {
	if n == 0 {
		panic("ids: GenerateBlock requires n > 0")
	}
	first := atomic.AddUint64(&s.clock, n) - n
	return newID(s.id, first)
}

// CreatedID reports whether id was issued by this site.
func (s *Site) CreatedID(id ID) bool { return id.Site() == s.id }

// WithClock returns id with its clock field replaced, keeping the site
// field. Used when walking a contiguous block of ids issued by
// GenerateBlock.
func WithClock(id ID, clock uint64) ID {
	return newID(id.Site(), clock)
}

// Compare returns -1, 0 or 1 analogous to strings.Compare, usable as an
// avltree.Tree ordering function.
func Compare(a, b ID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
