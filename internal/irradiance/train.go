package irradiance

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/aeroaqua/internal/log"
)

// TrainParams are the random forest hyperparameters
type TrainParams struct {
	Trees    int    `json:"trees" msgpack:"trees"`
	MaxDepth int    `json:"max_depth" msgpack:"max_depth"`
	MinLeaf  int    `json:"min_leaf" msgpack:"min_leaf"`
	Seed     uint64 `json:"seed" msgpack:"seed"`
	Workers  int    `json:"-" msgpack:"-"`
}

// DefaultTrainParams mirrors the settings the production model was trained with
func DefaultTrainParams() TrainParams {
	return TrainParams{
		Trees:    100,
		MaxDepth: 15,
		MinLeaf:  5,
		Seed:     42,
		Workers:  runtime.NumCPU(),
	}
}

// TrainReport summarizes a training run
type TrainReport struct {
	Rows            int
	Trees           int
	Duration        time.Duration
	InSampleRSquare float64
}

// TrainForest fits a bagged ensemble of CART regression trees to ds.  Each
// tree sees a bootstrap sample drawn from its own seeded stream, so results do
// not depend on the worker count.
func TrainForest(ds *Dataset, p TrainParams) (*Forest, TrainReport, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, TrainReport{}, errors.New("no training rows")
	}
	if p.Trees <= 0 || p.MaxDepth <= 0 || p.MinLeaf <= 0 {
		return nil, TrainReport{}, fmt.Errorf("invalid training parameters %+v", p)
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}

	start := time.Now()
	forest := &Forest{
		Version:   ArtifactVersion,
		ID:        uuid.NewString(),
		Columns:   append([]string{}, FeatureColumns...),
		TrainedAt: start.UTC(),
		Params:    p,
		Trees:     make([]Tree, p.Trees),
	}

	pool, err := ants.NewPool(p.Workers)
	if err != nil {
		return nil, TrainReport{}, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := 0; i < p.Trees; i++ {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(p.Seed, uint64(i)))
			forest.Trees[i] = growTree(ds, bootstrap(ds.Len(), rng), p)
			log.Debugw("grew tree", "tree", i, "nodes", len(forest.Trees[i].Nodes))
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, TrainReport{}, fmt.Errorf("submitting tree %d: %w", i, err)
		}
	}
	wg.Wait()

	pred, err := forest.Predict(ds.X)
	if err != nil {
		return nil, TrainReport{}, err
	}

	report := TrainReport{
		Rows:            ds.Len(),
		Trees:           p.Trees,
		Duration:        time.Since(start),
		InSampleRSquare: stat.RSquaredFrom(pred, ds.Y, nil),
	}
	return forest, report, nil
}

func bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

// treeBuilder accumulates nodes for one tree
type treeBuilder struct {
	ds    *Dataset
	p     TrainParams
	nodes []Node
}

func growTree(ds *Dataset, idx []int, p TrainParams) Tree {
	b := &treeBuilder{ds: ds, p: p}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

// grow appends the subtree for idx and returns its root index
func (b *treeBuilder) grow(idx []int, depth int) int32 {
	self := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.mean(idx)})

	if depth >= b.p.MaxDepth || len(idx) < 2*b.p.MinLeaf {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.ds.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: b.nodes[self].Value}
	return self
}

func (b *treeBuilder) mean(idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += b.ds.Y[i]
	}
	return sum / float64(len(idx))
}

// bestSplit finds the feature and threshold with the largest reduction in
// squared error, keeping at least MinLeaf rows on each side.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	var total, totalSq float64
	for _, i := range idx {
		y := b.ds.Y[i]
		total += y
		totalSq += y * y
	}
	parentSSE := totalSq - total*total/float64(n)
	if parentSSE <= 1e-12 {
		return 0, 0, false
	}

	best := parentSSE
	sorted := make([]int, n)

	for f := 0; f < len(FeatureColumns); f++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.ds.X[sorted[a]][f] < b.ds.X[sorted[c]][f]
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			y := b.ds.Y[sorted[k]]
			leftSum += y
			leftSq += y * y

			nl := k + 1
			nr := n - nl
			if nl < b.p.MinLeaf || nr < b.p.MinLeaf {
				continue
			}
			lo, hi := b.ds.X[sorted[k]][f], b.ds.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}

			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < best-1e-12 {
				best = sse
				feature = f
				threshold = lo + (hi-lo)/2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}
