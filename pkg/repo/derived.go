package repo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// Derived Product Item
// ============================================================================

// DerivedItem is the placeholder for a product computed out of band. It
// starts empty and unsliceable; when the worker finishes, the controlling
// loop populates it with SetResult or Fail. The tree itself never waits on
// the computation.
type DerivedItem struct {
	node
	arr *masked.Array
}

func NewDerivedItem(name string) *DerivedItem {
	return &DerivedItem{node: newNode(name, "", false)}
}

func (it *DerivedItem) Kind() Kind { return KindDerived }

func (it *DerivedItem) IsSliceable() bool { return it.arr != nil }

func (it *DerivedItem) ElemType() string {
	if it.arr == nil {
		return ""
	}
	return it.arr.Kind().String()
}

func (it *DerivedItem) Shape() []int {
	if it.arr == nil {
		return nil
	}
	return it.arr.Shape()
}

func (it *DerivedItem) MissingValue() any {
	if it.arr == nil {
		return nil
	}
	return it.arr.Fill
}

// Result returns the delivered product, or nil while pending.
func (it *DerivedItem) Result() *masked.Array { return it.arr }

// SetResult delivers the finished product, clearing any earlier failure.
func (it *DerivedItem) SetResult(arr *masked.Array) {
	it.arr = arr
	it.lastErr = nil
	notifyItemChanged(it)
}

// Fail records that the computation did not produce a result.
func (it *DerivedItem) Fail(err error) {
	it.arr = nil
	it.lastErr = err
	notifyItemChanged(it)
}

func (it *DerivedItem) sliceData(sels []masked.Sel) (*masked.Array, error) {
	if it.arr == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotSliceable, it.Path())
	}
	return it.arr.Select(sels...)
}

// ============================================================================
// Stacking Worker
// ============================================================================

// StackMode selects how traces combine inside a window.
type StackMode int

const (
	// StackCoherent averages raw amplitudes, preserving sign.
	StackCoherent StackMode = iota
	// StackIncoherent averages power, discarding phase.
	StackIncoherent
)

func (m StackMode) String() string {
	if m == StackIncoherent {
		return "incoherent"
	}
	return "coherent"
}

// StackRequest describes a stacking job: combine every Window consecutive
// traces of a traces × samples array into one output trace.
type StackRequest struct {
	Name   string
	Input  *masked.Array
	Window int
	Mode   StackMode
}

// StackResult is what the worker delivers when it finishes.
type StackResult struct {
	Name    string
	Arr     *masked.Array
	Err     error
	Elapsed time.Duration
}

// RunStack computes a stacked radargram synchronously. Masked input
// samples are left out of their window's average; output cells whose
// window held no valid sample come back masked with a NaN fill. The
// trailing partial window is kept.
func RunStack(req StackRequest) (*masked.Array, error) {
	if req.Input == nil {
		return nil, fmt.Errorf("stack %s: no input", req.Name)
	}
	if req.Input.NDim() != 2 {
		return nil, fmt.Errorf("stack %s: input must be 2-dimensional, got %s",
			req.Name, masked.FormatShape(req.Input.Shape()))
	}
	if req.Window < 1 {
		return nil, fmt.Errorf("stack %s: window must be positive, got %d", req.Name, req.Window)
	}

	shape := req.Input.Shape()
	nTraces, nSamples := shape[0], shape[1]
	outTraces := (nTraces + req.Window - 1) / req.Window
	if nTraces == 0 || nSamples == 0 {
		buf := masked.Zeros(masked.Float64, outTraces, nSamples)
		return masked.NewAllMasked(buf, math.NaN()), nil
	}

	vals, err := req.Input.Data.AsFloat64()
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", req.Name, err)
	}
	allMasked := req.Input.MaskIsScalar() && req.Input.AnyMasked()
	var maskBits []bool
	if !req.Input.MaskIsScalar() {
		maskBits = req.Input.MaskBuffer().Bools()
	}

	sums := sparse.ZerosDense(outTraces, nSamples)
	counts := sparse.ZerosDense(outTraces, nSamples)
	if !allMasked {
		for t := 0; t < nTraces; t++ {
			out := t / req.Window
			row := t * nSamples
			for s := 0; s < nSamples; s++ {
				if maskBits != nil && maskBits[row+s] {
					continue
				}
				v := vals[row+s]
				if req.Mode == StackIncoherent {
					v = v * v
				}
				sums.AddVal(v, out, s)
				counts.AddVal(1, out, s)
			}
		}
	}

	data := make([]float64, outTraces*nSamples)
	mask := make([]bool, outTraces*nSamples)
	for i := 0; i < outTraces; i++ {
		for s := 0; s < nSamples; s++ {
			flat := i*nSamples + s
			n := counts.Get(i, s)
			if n == 0 {
				data[flat] = math.NaN()
				mask[flat] = true
				continue
			}
			data[flat] = sums.Get(i, s) / n
		}
	}

	buf, err := masked.NewFloat64([]int{outTraces, nSamples}, data)
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", req.Name, err)
	}
	maskBuf, err := masked.NewBool([]int{outTraces, nSamples}, mask)
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", req.Name, err)
	}
	return masked.NewWithMask(buf, maskBuf, math.NaN())
}

// StartStack runs a stacking job on its own goroutine and delivers the
// result on the returned channel, which is buffered so the worker never
// blocks on a slow receiver. The receiving loop is responsible for
// mounting the result, typically on a DerivedItem.
func StartStack(ctx context.Context, req StackRequest) <-chan StackResult {
	ch := make(chan StackResult, 1)
	go func() {
		defer close(ch)
		log.Info("stack %s: running (%s, window %d)", req.Name, req.Mode, req.Window)
		start := time.Now()

		if err := ctx.Err(); err != nil {
			log.Warn("stack %s: cancelled before start", req.Name)
			ch <- StackResult{Name: req.Name, Err: err}
			return
		}

		arr, err := RunStack(req)
		elapsed := time.Since(start)
		if err != nil {
			log.Error("stack %s: failed after %v: %v", req.Name, elapsed, err)
		} else {
			log.Info("stack %s: finished in %v", req.Name, elapsed)
		}
		ch <- StackResult{Name: req.Name, Arr: arr, Err: err, Elapsed: elapsed}
	}()
	return ch
}
