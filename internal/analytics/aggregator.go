package analytics

const (
	DefaultAlertWindow    = 10
	DefaultAlertThreshold = 3
)

// Aggregator debounces per-sample outlier flags. An alert is raised while at
// least threshold of the last window flags are outliers, on every sample.
type Aggregator struct {
	flags     *Window[bool]
	threshold int
}

func NewAggregator(window, threshold int) *Aggregator {
	if threshold < 1 {
		threshold = 1
	}
	return &Aggregator{
		flags:     NewWindow[bool](window),
		threshold: threshold,
	}
}

func (a *Aggregator) Record(isOutlier bool) bool {
	a.flags.Push(isOutlier)
	return a.Count() >= a.threshold
}

// Count is the number of outliers currently in the window.
func (a *Aggregator) Count() int {
	n := 0
	for _, f := range a.flags.Values() {
		if f {
			n++
		}
	}
	return n
}

func (a *Aggregator) Window() int    { return a.flags.Cap() }
func (a *Aggregator) Threshold() int { return a.threshold }
