package tf

// QueryMode selects how a Chain resolves a lookup.
type QueryMode uint8

const (
	// QueryLatest returns the most recent sample regardless of its stamp.
	QueryLatest QueryMode = iota
	// QueryAtTime returns the sample at, or interpolated to, a given stamp.
	QueryAtTime
)

// Query is a lookup request. The zero Query asks for the latest sample.
type Query struct {
	mode  QueryMode
	stamp Stamp
}

// Latest asks for the most recent sample.
func Latest() Query {
	return Query{mode: QueryLatest}
}

// At asks for the transform at s. At never treats the epoch as latest;
// use QueryFromStamp for the wire convention.
func At(s Stamp) Query {
	return Query{mode: QueryAtTime, stamp: s}
}

// QueryFromStamp applies the "zero stamp means latest" convention used by
// publishers and external callers.
func QueryFromStamp(s Stamp) Query {
	if s.IsZero() {
		return Latest()
	}
	return At(s)
}

// Mode returns the query mode.
func (q Query) Mode() QueryMode { return q.mode }

// IsLatest reports whether q asks for the most recent sample.
func (q Query) IsLatest() bool { return q.mode == QueryLatest }

// Stamp returns the requested stamp. It is the epoch for latest queries.
func (q Query) Stamp() Stamp { return q.stamp }

func (q Query) String() string {
	if q.IsLatest() {
		return "latest"
	}
	return q.stamp.String()
}
