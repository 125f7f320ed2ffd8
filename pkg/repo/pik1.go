package repo

import (
	"bufio"
	"fmt"

	"github.com/go-git/go-billy/v5"
	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/firnlab/firn/pkg/masked"
)

// ============================================================================
// PIK1 Survey Item
// ============================================================================

// A pik1 product is a flat binary file of radargram traces: big-endian
// 32-bit samples, 3200 per trace, no header. The trace count is implied by
// the file size.
const pik1SamplesPerTrace = 3200

// PIK1Item decodes a pik1 radar survey product into a traces × samples
// integer array. Opening decodes the whole file and releases the handle
// immediately, so the open item owns only memory. The decoded product is
// not sliced through the file node itself: expanding it mounts one array
// child named "pik1" carrying the traces.
type PIK1Item struct {
	node
	fs  billy.Filesystem
	arr *masked.Array
}

func NewPIK1Item(fs billy.Filesystem, name, fileName string) *PIK1Item {
	return &PIK1Item{node: newNode(name, fileName, true), fs: fs}
}

func (it *PIK1Item) Kind() Kind { return KindSurvey }

// Traces returns the decoded survey, or nil while the item is closed.
func (it *PIK1Item) Traces() *masked.Array { return it.arr }

func (it *PIK1Item) openResources() error {
	fi, err := it.fs.Stat(it.fileName)
	if err != nil {
		return fmt.Errorf("survey %s: %w", it.fileName, err)
	}
	size := fi.Size()
	if size == 0 {
		return fmt.Errorf("pik1 file %s is empty", it.fileName)
	}
	nTraces := int(size / (4 * pik1SamplesPerTrace))
	if nTraces == 0 {
		return fmt.Errorf("pik1 file %s is shorter than one trace", it.fileName)
	}

	f, err := it.fs.Open(it.fileName)
	if err != nil {
		return fmt.Errorf("survey %s: %w", it.fileName, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<16)
	data := make([]int32, nTraces*pik1SamplesPerTrace)
	var trace [pik1SamplesPerTrace]int32
	for t := 0; t < nTraces; t++ {
		if _, err := xdr.Unmarshal(r, &trace); err != nil {
			return fmt.Errorf("decoding trace %d of %s: %w", t, it.fileName, err)
		}
		copy(data[t*pik1SamplesPerTrace:], trace[:])
	}

	buf, err := masked.NewInt32([]int{nTraces, pik1SamplesPerTrace}, data)
	if err != nil {
		return fmt.Errorf("survey %s: %w", it.fileName, err)
	}
	it.arr = masked.New(buf, nil)
	log.Debug("decoded %s: %d traces", it.fileName, nTraces)
	return nil
}

func (it *PIK1Item) closeResources() error {
	it.arr = nil
	return nil
}

func (it *PIK1Item) fetchResources() ([]Item, error) {
	return []Item{NewArrayItem("pik1", it.arr)}, nil
}
