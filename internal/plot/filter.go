package plot

// Filter returns the points whose year lies in r, preserving input order.
// The result is never nil.
func Filter(points []DataPoint, r Range) []DataPoint {
	out := make([]DataPoint, 0, len(points))
	for _, p := range points {
		if r.Contains(p.Year) {
			out = append(out, p)
		}
	}
	return out
}

// ClusterCounts tallies points per cluster id.
func ClusterCounts(points []DataPoint) map[int]int {
	counts := make(map[int]int)
	for _, p := range points {
		counts[p.Cluster]++
	}
	return counts
}
