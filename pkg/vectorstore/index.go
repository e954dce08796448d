package vectorstore

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

// flatIndex is an exhaustive L2 index. Vector IDs are insertion positions.
type flatIndex struct {
	dim     int
	model   string
	vectors []float32 // row-major, len == dim * count
}

type hit struct {
	id       int
	distance float32
}

func newFlatIndex(dim int, model string) *flatIndex {
	return &flatIndex{dim: dim, model: model}
}

func (x *flatIndex) Len() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.vectors) / x.dim
}

func (x *flatIndex) add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return goerr.Wrap(ErrDimensionMismatch, "vector has wrong length",
				goerr.V("index", i),
				goerr.V("expected", x.dim),
				goerr.V("actual", len(v)))
		}
	}
	for _, v := range vectors {
		x.vectors = append(x.vectors, v...)
	}
	return nil
}

// truncate drops vectors beyond n
func (x *flatIndex) truncate(n int) {
	x.vectors = x.vectors[:n*x.dim]
}

func (x *flatIndex) vector(id int) []float32 {
	return x.vectors[id*x.dim : (id+1)*x.dim]
}

// search returns up to k hits by ascending squared L2 distance; ties keep insertion order
func (x *flatIndex) search(query []float32, k int) []hit {
	n := x.Len()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	hits := make([]hit, n)
	for id := 0; id < n; id++ {
		hits[id] = hit{id: id, distance: squaredL2(query, x.vector(id))}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].distance < hits[j].distance
	})

	return hits[:k]
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
