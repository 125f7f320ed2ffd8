package masked

import (
	"fmt"
	"strconv"
	"strings"
)

type selKind uint8

const (
	selAll selKind = iota
	selIndex
	selRange
)

// Sel selects elements along one axis. Build values with All, Index, Range
// or RangeStep, or parse a whole selection with ParseSelection.
type Sel struct {
	kind  selKind
	index int
	lo    int
	hi    int
	step  int
	hasLo bool
	hasHi bool
}

// All selects every element of an axis.
func All() Sel { return Sel{kind: selAll} }

// Index selects a single coordinate and drops the axis from the result.
// Negative values count from the end of the axis.
func Index(i int) Sel { return Sel{kind: selIndex, index: i} }

// Range selects the half-open interval [lo, hi) along an axis. Bounds
// outside the axis are clamped; negative bounds count from the end.
func Range(lo, hi int) Sel {
	return Sel{kind: selRange, lo: lo, hi: hi, step: 1, hasLo: true, hasHi: true}
}

// RangeStep selects [lo, hi) taking every step-th element. The step must be
// positive.
func RangeStep(lo, hi, step int) Sel {
	return Sel{kind: selRange, lo: lo, hi: hi, step: step, hasLo: true, hasHi: true}
}

// String renders the selection in slice notation.
func (s Sel) String() string {
	switch s.kind {
	case selAll:
		return ":"
	case selIndex:
		return strconv.Itoa(s.index)
	default:
		var b strings.Builder
		if s.hasLo {
			b.WriteString(strconv.Itoa(s.lo))
		}
		b.WriteByte(':')
		if s.hasHi {
			b.WriteString(strconv.Itoa(s.hi))
		}
		if s.step != 1 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(s.step))
		}
		return b.String()
	}
}

// axisSel is a selection resolved against a concrete axis length.
type axisSel struct {
	start int
	step  int
	count int
	keep  bool
}

// normalizeSels resolves the given selections against a shape. Missing
// trailing selections default to All. It returns the per-axis walk plan
// and the resulting shape, which omits axes selected by Index.
func normalizeSels(shape []int, sels []Sel) ([]axisSel, []int, error) {
	if len(sels) > len(shape) {
		return nil, nil, fmt.Errorf("%d selections for %d dimensions", len(sels), len(shape))
	}
	norm := make([]axisSel, len(shape))
	outShape := make([]int, 0, len(shape))
	for axis, dim := range shape {
		var sel Sel
		if axis < len(sels) {
			sel = sels[axis]
		} else {
			sel = All()
		}
		switch sel.kind {
		case selAll:
			norm[axis] = axisSel{start: 0, step: 1, count: dim, keep: true}
		case selIndex:
			i := sel.index
			if i < 0 {
				i += dim
			}
			if i < 0 || i >= dim {
				return nil, nil, fmt.Errorf("index %d out of range for axis %d of length %d", sel.index, axis, dim)
			}
			norm[axis] = axisSel{start: i, step: 1, count: 1, keep: false}
		case selRange:
			if sel.step < 1 {
				return nil, nil, fmt.Errorf("selection step must be positive, got %d", sel.step)
			}
			lo, hi := 0, dim
			if sel.hasLo {
				lo = clampBound(sel.lo, dim)
			}
			if sel.hasHi {
				hi = clampBound(sel.hi, dim)
			}
			count := 0
			if hi > lo {
				count = (hi - lo + sel.step - 1) / sel.step
			}
			norm[axis] = axisSel{start: lo, step: sel.step, count: count, keep: true}
		}
		if norm[axis].keep {
			outShape = append(outShape, norm[axis].count)
		}
	}
	return norm, outShape, nil
}

// clampBound resolves one range bound against an axis of length dim,
// counting negative values from the end and clamping to [0, dim].
func clampBound(v, dim int) int {
	if v < 0 {
		v += dim
	}
	if v < 0 {
		return 0
	}
	if v > dim {
		return dim
	}
	return v
}

// padSels extends sels with All entries up to the rank of shape.
func padSels(shape []int, sels []Sel) []Sel {
	out := make([]Sel, len(shape))
	copy(out, sels)
	for i := len(sels); i < len(shape); i++ {
		out[i] = All()
	}
	return out
}

// walkSels visits every selected source index combination in row-major
// order of the result, leaving the current combination in ix when fn runs.
func walkSels(norm []axisSel, ix []int, axis int, fn func()) {
	if axis == len(norm) {
		fn()
		return
	}
	a := norm[axis]
	for j := 0; j < a.count; j++ {
		ix[axis] = a.start + j*a.step
		walkSels(norm, ix, axis+1, fn)
	}
}

// ParseSelection parses a comma-separated selection expression in slice
// notation, for example "0, 10:200, :, ::4". Surrounding brackets are
// allowed. An empty expression selects everything.
func ParseSelection(expr string) ([]Sel, error) {
	s := strings.TrimSpace(expr)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	sels := make([]Sel, 0, len(parts))
	for _, raw := range parts {
		sel, err := parseOneSel(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q: %w", expr, err)
		}
		sels = append(sels, sel)
	}
	return sels, nil
}

func parseOneSel(s string) (Sel, error) {
	if s == "" {
		return Sel{}, fmt.Errorf("empty axis selection")
	}
	if !strings.Contains(s, ":") {
		i, err := strconv.Atoi(s)
		if err != nil {
			return Sel{}, fmt.Errorf("bad index %q", s)
		}
		return Index(i), nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return Sel{}, fmt.Errorf("too many ':' in %q", s)
	}
	sel := Sel{kind: selRange, step: 1}
	if v := strings.TrimSpace(parts[0]); v != "" {
		lo, err := strconv.Atoi(v)
		if err != nil {
			return Sel{}, fmt.Errorf("bad range start %q", v)
		}
		sel.lo, sel.hasLo = lo, true
	}
	if v := strings.TrimSpace(parts[1]); v != "" {
		hi, err := strconv.Atoi(v)
		if err != nil {
			return Sel{}, fmt.Errorf("bad range stop %q", v)
		}
		sel.hi, sel.hasHi = hi, true
	}
	if len(parts) == 3 {
		if v := strings.TrimSpace(parts[2]); v != "" {
			step, err := strconv.Atoi(v)
			if err != nil {
				return Sel{}, fmt.Errorf("bad range step %q", v)
			}
			if step < 1 {
				return Sel{}, fmt.Errorf("range step must be positive, got %d", step)
			}
			sel.step = step
		}
	}
	if !sel.hasLo && !sel.hasHi && sel.step == 1 {
		return All(), nil
	}
	return sel, nil
}
