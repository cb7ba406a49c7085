package ml

import (
	"math"
	"math/rand"
	"sort"

	"bus-monitor/internal/models"

	"gonum.org/v1/gonum/stat"
)

const eulerGamma = 0.5772156649

// Options configures an IsolationForest.
type Options struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          int64
}

func DefaultOptions() Options {
	return Options{
		Trees:         200,
		MaxSamples:    256,
		Contamination: 0.02,
		Seed:          42,
	}
}

// isolationTree is a single node of a random partitioning tree.
type isolationTree struct {
	splitFeature int
	splitValue   float64
	left         *isolationTree
	right        *isolationTree
	size         int
	isLeaf       bool
}

// IsolationForest scores points by how quickly random axis-aligned splits
// isolate them. The decision threshold is placed so that roughly
// Contamination of the training batch scores as outlier.
type IsolationForest struct {
	opts       Options
	trees      []*isolationTree
	sampleSize int
	maxDepth   int
	threshold  float64
	rng        *rand.Rand
}

func NewIsolationForest(opts Options) *IsolationForest {
	def := DefaultOptions()
	if opts.Trees <= 0 {
		opts.Trees = def.Trees
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = def.MaxSamples
	}
	return &IsolationForest{opts: opts}
}

// Fit rebuilds the forest from scratch. The generator is reseeded on every
// call so identical batches always yield identical trees.
func (f *IsolationForest) Fit(vectors []models.FeatureVector) error {
	if len(vectors) == 0 {
		return ErrNoTrainingData
	}
	if f.opts.Contamination <= 0 || f.opts.Contamination >= 1 {
		return ErrInvalidContamination
	}

	data := make([][]float64, len(vectors))
	for i, v := range vectors {
		data[i] = v.Slice()
	}

	f.rng = rand.New(rand.NewSource(f.opts.Seed))
	f.sampleSize = f.opts.MaxSamples
	if f.sampleSize > len(data) {
		f.sampleSize = len(data)
	}
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(float64(f.sampleSize), 2))))

	f.trees = make([]*isolationTree, 0, f.opts.Trees)
	for i := 0; i < f.opts.Trees; i++ {
		f.trees = append(f.trees, f.buildTree(f.sample(data), 0))
	}

	scores := make([]float64, len(data))
	for i, point := range data {
		scores[i] = f.score(point)
	}
	sort.Float64s(scores)
	f.threshold = stat.Quantile(1-f.opts.Contamination, stat.Empirical, scores, nil)

	return nil
}

func (f *IsolationForest) Predict(v models.FeatureVector) Verdict {
	if len(f.trees) == 0 {
		return Inlier
	}
	if f.score(v.Slice()) > f.threshold {
		return Outlier
	}
	return Inlier
}

// Score returns the anomaly score in (0, 1]; higher is more anomalous.
func (f *IsolationForest) Score(v models.FeatureVector) float64 {
	if len(f.trees) == 0 {
		return 0.5
	}
	return f.score(v.Slice())
}

func (f *IsolationForest) Threshold() float64 { return f.threshold }

func (f *IsolationForest) score(point []float64) float64 {
	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, point, 0)
	}
	avg := total / float64(len(f.trees))

	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

// sample draws sampleSize rows without replacement (partial Fisher-Yates).
func (f *IsolationForest) sample(data [][]float64) [][]float64 {
	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	out := make([][]float64, f.sampleSize)
	for i := 0; i < f.sampleSize; i++ {
		j := i + f.rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = data[idx[i]]
	}
	return out
}

func (f *IsolationForest) buildTree(data [][]float64, depth int) *isolationTree {
	if len(data) <= 1 || depth >= f.maxDepth {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	// only features that still vary can split this node
	type featureRange struct {
		feature  int
		min, max float64
	}
	var candidates []featureRange
	for j := range data[0] {
		lo, hi := featureBounds(data, j)
		if hi > lo {
			candidates = append(candidates, featureRange{j, lo, hi})
		}
	}
	if len(candidates) == 0 {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	c := candidates[f.rng.Intn(len(candidates))]
	split := c.min + f.rng.Float64()*(c.max-c.min)

	var left, right [][]float64
	for _, p := range data {
		if p[c.feature] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	return &isolationTree{
		splitFeature: c.feature,
		splitValue:   split,
		left:         f.buildTree(left, depth+1),
		right:        f.buildTree(right, depth+1),
		size:         len(data),
	}
}

func featureBounds(data [][]float64, feature int) (float64, float64) {
	lo, hi := data[0][feature], data[0][feature]
	for _, p := range data[1:] {
		if p[feature] < lo {
			lo = p[feature]
		}
		if p[feature] > hi {
			hi = p[feature]
		}
	}
	return lo, hi
}

func pathLength(tree *isolationTree, point []float64, depth int) float64 {
	for !tree.isLeaf {
		if point[tree.splitFeature] < tree.splitValue {
			tree = tree.left
		} else {
			tree = tree.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(tree.size)
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}
