package gaze

// Position is a smoothed marker position. Unlike Point it is fractional:
// the average of the window contents, used directly as the render position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Smoother maintains a fixed-capacity sliding window of recently mapped
// points and a running sum of their coordinates. Pushing a point appends it,
// evicts the oldest point once the window is full, and updates the sums
// incrementally (add newest, subtract evicted) so the per-sample cost is
// independent of the window size.
//
// Invariant: sumX/sumY always equal the exact sum of the points currently
// retained in the window.
//
// Smoother is not safe for concurrent use; Session serialises access.
type Smoother struct {
	points []Point // ring buffer, capacity fixed at construction
	head   int     // index of the oldest element
	count  int
	sumX   float64
	sumY   float64
}

// NewSmoother returns a smoother averaging over at most capacity points.
// A capacity below 1 disables smoothing (window of one).
func NewSmoother(capacity int) *Smoother {
	if capacity < 1 {
		capacity = 1
	}
	return &Smoother{points: make([]Point, capacity)}
}

// Push appends a mapped point to the window, evicting the oldest point if
// the window is at capacity, and returns the updated average. The average is
// always sum/length over the points actually retained: during warm-up the
// window averages over fewer than capacity points.
func (s *Smoother) Push(p Point) Position {
	if s.count == len(s.points) {
		old := s.points[s.head]
		s.sumX -= float64(old.X)
		s.sumY -= float64(old.Y)
		s.points[s.head] = p
		s.head = (s.head + 1) % len(s.points)
	} else {
		s.points[(s.head+s.count)%len(s.points)] = p
		s.count++
	}
	s.sumX += float64(p.X)
	s.sumY += float64(p.Y)

	return Position{
		X: s.sumX / float64(s.count),
		Y: s.sumY / float64(s.count),
	}
}

// Current returns the present average without mutating the window. The
// second return is false while the window is empty, in which case the
// position is undefined and must not be rendered.
func (s *Smoother) Current() (Position, bool) {
	if s.count == 0 {
		return Position{}, false
	}
	return Position{
		X: s.sumX / float64(s.count),
		Y: s.sumY / float64(s.count),
	}, true
}

// Len returns the number of points currently retained.
func (s *Smoother) Len() int { return s.count }

// Cap returns the window capacity.
func (s *Smoother) Cap() int { return len(s.points) }

// Points returns the retained points in oldest-first order. Used by tests
// and the trace endpoints; the returned slice is a copy.
func (s *Smoother) Points() []Point {
	out := make([]Point, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.points[(s.head+i)%len(s.points)]
	}
	return out
}

// Reset empties the window and zeroes the running sums.
func (s *Smoother) Reset() {
	s.head = 0
	s.count = 0
	s.sumX = 0
	s.sumY = 0
}
