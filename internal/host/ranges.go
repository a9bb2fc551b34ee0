package host

// Ranges remembers the smallest and largest value seen on each track so
// renderers can scale values of any unit into [0, 1]. The initial range of
// every track is [0, 1].
type Ranges struct {
	byName map[string]*valueRange
}

type valueRange struct {
	min, max float64
}

// NewRanges creates an empty Ranges.
func NewRanges() *Ranges {
	return &Ranges{byName: make(map[string]*valueRange)}
}

// Normalize records v for the named track and returns its position in the
// track's range so far.
func (r *Ranges) Normalize(name string, v float64) float64 {
	rng, ok := r.byName[name]
	if !ok {
		rng = &valueRange{min: 0, max: 1}
		r.byName[name] = rng
	}
	if v < rng.min {
		rng.min = v
	}
	if v > rng.max {
		rng.max = v
	}
	if rng.max <= rng.min {
		return 0
	}
	return (v - rng.min) / (rng.max - rng.min)
}
