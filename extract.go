package vpk

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/javi11/govpk/internal/fsutil"
)

// ExtractOptions controls Extract, ExtractBatch and ExtractAll.
type ExtractOptions struct {
	// Strict turns a checksum mismatch into ErrChecksumMismatch and leaves no
	// output file. By default the file is written and the mismatch is only
	// reported in ExtractResult.Checksum.
	Strict bool
	// Workers bounds concurrent entries in a batch. Values below 1 mean 1.
	Workers int
	// Progress is called once per finished batch entry, never concurrently.
	Progress func(Progress)
	// Perm is the mode of created files, 0644 when zero.
	Perm os.FileMode
}

// Progress reports one finished batch entry.
type Progress struct {
	Done  int
	Total int
	Path  string
	Err   error
}

// ProgressChannel adapts ch for ExtractOptions.Progress. Sends never block; an
// update is dropped when ch is full.
func ProgressChannel(ch chan<- Progress) func(Progress) {
	return func(p Progress) {
		select {
		case ch <- p:
		default:
		}
	}
}

// ExtractResult is the outcome for one entry.
type ExtractResult struct {
	Path     string       `json:"path"`
	Dest     string       `json:"dest"`
	Bytes    int64        `json:"bytes"`
	Checksum VerifyResult `json:"checksum"`
	Err      error        `json:"-"`
}

// BatchResult holds per entry results in input order. Entries skipped after
// cancellation have no result.
type BatchResult struct {
	Results  []ExtractResult
	Total    int
	Canceled bool
}

// Failed counts results with an error.
func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Extract writes the payload of the entry at path to destFile. The file
// appears only once it is complete.
func (a *Archive) Extract(ctx context.Context, path, destFile string, opts ExtractOptions) (ExtractResult, error) {
	if err := ctx.Err(); err != nil {
		return ExtractResult{Path: CleanPath(path), Dest: destFile, Err: err}, err
	}
	e, err := a.entry("extract", path)
	if err != nil {
		return ExtractResult{Path: CleanPath(path), Dest: destFile, Err: err}, err
	}
	res := a.extractEntry(e, destFile, opts)
	return res, res.Err
}

func (a *Archive) extractEntry(e Entry, dest string, opts ExtractOptions) ExtractResult {
	res := ExtractResult{Path: e.Path, Dest: dest, Checksum: VerifyResult{Path: e.Path, Expected: e.CRC}}
	er, err := a.openEntry(e)
	if err != nil {
		res.Err = err
		return res
	}
	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}
	out, err := fsutil.CreateAtomic(dest, perm)
	if err != nil {
		res.Err = newError("extract", ErrIO, a.path, -1, err).withEntry(e.Path)
		return res
	}
	n, err := io.Copy(out, er)
	res.Bytes = n
	if err != nil {
		out.Abort()
		if _, ok := err.(*Error); !ok {
			err = newError("extract", ErrIO, a.path, -1, fmt.Errorf("write %s: %w", dest, err)).withEntry(e.Path)
		}
		res.Err = err
		return res
	}
	res.Checksum = er.Verify()
	if !res.Checksum.OK {
		if opts.Strict {
			out.Abort()
			res.Err = newError("extract", ErrChecksumMismatch, a.path, -1,
				fmt.Errorf("crc %08x, stored %08x", res.Checksum.Actual, res.Checksum.Expected)).withEntry(e.Path)
			return res
		}
		a.logger.Warn("checksum mismatch", "entry", e.Path, "want", fmt.Sprintf("%08x", e.CRC), "got", fmt.Sprintf("%08x", res.Checksum.Actual))
	}
	if err := out.Commit(); err != nil {
		res.Err = newError("extract", ErrIO, a.path, -1, err).withEntry(e.Path)
		return res
	}
	a.logger.Debug("extracted", "entry", e.Path, "dest", dest, "bytes", n)
	return res
}

type batchJob struct {
	path  string
	entry Entry
	err   error
}

// ExtractBatch extracts each path to destRoot/<path>. Entries fail
// independently. Cancelling ctx stops new entries from starting; the ones
// already running finish and the result is marked Canceled. The error is
// non-nil only when the archive is closed.
func (a *Archive) ExtractBatch(ctx context.Context, paths []string, destRoot string, opts ExtractOptions) (BatchResult, error) {
	if a.closed.Load() {
		return BatchResult{}, newError("extract", ErrClosed, a.path, -1, nil)
	}
	jobs := make([]batchJob, len(paths))
	for i, p := range paths {
		jobs[i].path = CleanPath(p)
		jobs[i].entry, jobs[i].err = a.entry("extract", p)
	}
	return a.runBatch(ctx, jobs, destRoot, opts), nil
}

// ExtractAll extracts every entry matching f to destRoot.
func (a *Archive) ExtractAll(ctx context.Context, f Filter, destRoot string, opts ExtractOptions) (BatchResult, error) {
	if a.closed.Load() {
		return BatchResult{}, newError("extract", ErrClosed, a.path, -1, nil)
	}
	var jobs []batchJob
	for e := range a.Entries(f) {
		jobs = append(jobs, batchJob{path: e.Path, entry: e})
	}
	return a.runBatch(ctx, jobs, destRoot, opts), nil
}

func (a *Archive) runBatch(ctx context.Context, jobs []batchJob, destRoot string, opts ExtractOptions) BatchResult {
	results := make([]ExtractResult, len(jobs))
	attempted := make([]bool, len(jobs))
	var (
		mu       sync.Mutex
		done     int
		canceled bool
	)
	finish := func(i int, r ExtractResult) {
		mu.Lock()
		defer mu.Unlock()
		results[i] = r
		attempted[i] = true
		done++
		if opts.Progress != nil {
			opts.Progress(Progress{Done: done, Total: len(jobs), Path: r.Path, Err: r.Err})
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(max(opts.Workers, 1))
	for i, j := range jobs {
		if ctx.Err() != nil {
			mu.Lock()
			canceled = true
			mu.Unlock()
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				canceled = true
				mu.Unlock()
				return nil
			}
			finish(i, a.batchEntry(j, destRoot, opts))
			return nil
		})
	}
	_ = g.Wait()

	br := BatchResult{Total: len(jobs), Canceled: canceled}
	for i, r := range results {
		if attempted[i] {
			br.Results = append(br.Results, r)
		}
	}
	if br.Canceled {
		a.logger.Info("extraction canceled", "archive", a.path, "done", len(br.Results), "total", br.Total)
	}
	return br
}

func (a *Archive) batchEntry(j batchJob, destRoot string, opts ExtractOptions) ExtractResult {
	if j.err != nil {
		return ExtractResult{Path: j.path, Err: j.err}
	}
	dest, err := fsutil.SafeJoin(destRoot, j.entry.Path)
	if err != nil {
		return ExtractResult{Path: j.entry.Path, Err: newError("extract", ErrUnsafePath, a.path, j.entry.RecordOffset, err).withEntry(j.entry.Path)}
	}
	return a.extractEntry(j.entry, dest, opts)
}
