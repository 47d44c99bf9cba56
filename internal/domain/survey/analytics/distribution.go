package analytics

// Band is a rating bucket.
type Band string

const (
	BandOutstanding      Band = "Outstanding"
	BandExcellent        Band = "Excellent"
	BandGood             Band = "Good"
	BandNeedsImprovement Band = "Needs Improvement"
)

// Bands returns the rating bands from best to worst.
func Bands() []Band {
	return []Band{BandOutstanding, BandExcellent, BandGood, BandNeedsImprovement}
}

// BandFor places a rating: [4.5, inf) Outstanding, [4.0, 4.5) Excellent,
// [3.5, 4.0) Good, below 3.5 Needs Improvement.
func BandFor(rating float64) Band {
	switch {
	case rating >= 4.5:
		return BandOutstanding
	case rating >= 4.0:
		return BandExcellent
	case rating >= 3.5:
		return BandGood
	default:
		return BandNeedsImprovement
	}
}

// BandCount is the number of ratings in one band.
type BandCount struct {
	Band  Band `json:"band"`
	Count int  `json:"count"`
}

// RatingDistribution counts numeric ratings per band. Every band is present.
func (e *Engine) RatingDistribution() map[Band]int {
	out := make(map[Band]int, 4)
	for _, b := range Bands() {
		out[b] = 0
	}
	for _, r := range e.Ratings() {
		out[BandFor(r)]++
	}
	return out
}

// RatingDistributionList is RatingDistribution in band order.
func (e *Engine) RatingDistributionList() []BandCount {
	dist := e.RatingDistribution()
	out := make([]BandCount, 0, len(dist))
	for _, b := range Bands() {
		out = append(out, BandCount{Band: b, Count: dist[b]})
	}
	return out
}

var performanceLevels = []struct {
	threshold float64
	level     string
}{
	{4.7, "Outstanding"},
	{4.3, "Excellent"},
	{4.0, "Very Good"},
	{3.5, "Good"},
}

// PerformanceLevel labels a trainer's mean rating.
func PerformanceLevel(rating float64) string {
	for _, pl := range performanceLevels {
		if rating >= pl.threshold {
			return pl.level
		}
	}
	return "Needs Improvement"
}
