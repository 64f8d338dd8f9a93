// Package fix applies rule corrections to source buffers and files.
package fix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/anycop/internal/model"
)

// DefaultMaxIterations bounds the number of analyse-and-correct passes.
const DefaultMaxIterations = 200

// ErrInfiniteLoop is returned when corrections keep producing new offenses.
var ErrInfiniteLoop = errors.New("infinite correction loop")

// Apply applies edits to source and returns the new buffer and the number of
// edits applied. Edits are taken in start order; an edit overlapping an
// earlier accepted edit is skipped and left for a later pass.
func Apply(source []byte, edits []model.Edit) ([]byte, int) {
	accepted := selectEdits(len(source), edits)
	if len(accepted) == 0 {
		return source, 0
	}

	var b bytes.Buffer
	b.Grow(len(source))
	last := 0
	for _, e := range accepted {
		b.Write(source[last:e.Span.Start.Offset])
		b.WriteString(e.Text)
		last = e.Span.End.Offset
	}
	b.Write(source[last:])
	return b.Bytes(), len(accepted)
}

// selectEdits returns the in-bounds, non-overlapping subset of edits in
// start order.
func selectEdits(size int, edits []model.Edit) []model.Edit {
	sorted := make([]model.Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start.Offset != sorted[j].Span.Start.Offset {
			return sorted[i].Span.Start.Offset < sorted[j].Span.Start.Offset
		}
		return sorted[i].Span.End.Offset < sorted[j].Span.End.Offset
	})

	accepted := sorted[:0]
	for _, e := range sorted {
		if e.Span.Start.Offset < 0 || e.Span.End.Offset > size || e.Span.Len() < 0 {
			continue
		}
		if n := len(accepted); n > 0 && accepted[n-1].Span.Overlaps(e.Span) {
			continue
		}
		accepted = append(accepted, e)
	}
	return accepted
}

// AnalyzeFunc inspects a source buffer and returns its offenses.
type AnalyzeFunc func(ctx context.Context, source []byte) ([]model.Offense, error)

// Result is the outcome of Loop.
type Result struct {
	Source []byte
	// Offenses are those found in the original buffer. Once the loop
	// settles every correctable one is marked Corrected.
	Offenses []model.Offense
	// Applied counts edits across all passes, including ones for offenses
	// that only appeared after an earlier correction.
	Applied int
	Passes  int
}

// Changed reports whether Loop rewrote the buffer.
func (r Result) Changed() bool {
	return r.Applied > 0
}

// Loop repeatedly analyses source and applies corrections until a pass finds
// nothing to correct. It fails with ErrInfiniteLoop if a previously seen
// buffer reappears or maxIterations passes are exceeded.
func Loop(ctx context.Context, analyze AnalyzeFunc, source []byte, maxIterations int) (Result, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	res := Result{Source: source}
	seen := map[uint64]struct{}{checksum(source): {}}

	for res.Passes < maxIterations {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		offenses, err := analyze(ctx, res.Source)
		if err != nil {
			return res, err
		}
		res.Passes++
		if res.Passes == 1 {
			res.Offenses = offenses
		}

		var edits []model.Edit
		for _, o := range offenses {
			if o.Edit != nil {
				edits = append(edits, *o.Edit)
			}
		}

		out, applied := Apply(res.Source, edits)
		if applied == 0 {
			if res.Applied > 0 {
				for i := range res.Offenses {
					res.Offenses[i].Corrected = res.Offenses[i].Correctable()
				}
			}
			return res, nil
		}
		res.Applied += applied
		res.Source = out

		sum := checksum(out)
		if _, dup := seen[sum]; dup {
			return res, ErrInfiniteLoop
		}
		seen[sum] = struct{}{}
	}

	return res, fmt.Errorf("%w: gave up after %d passes", ErrInfiniteLoop, maxIterations)
}

func checksum(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// WriteFiles writes every result with a non-nil Corrected buffer back to
// root/Path, at most jobs files at a time.
func WriteFiles(ctx context.Context, root string, results []model.FileResult, jobs int) error {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i := range results {
		r := &results[i]
		if r.Corrected == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return writeFile(filepath.Join(root, r.Path), r.Corrected)
		})
	}
	return g.Wait()
}

// writeFile replaces path atomically, keeping its permissions.
func writeFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".anycop-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
