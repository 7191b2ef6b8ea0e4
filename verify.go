package vpk

import (
	"context"
	"hash/crc32"
	"io"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// VerifyResult is the outcome of a checksum comparison for one entry.
type VerifyResult struct {
	Path     string `json:"path"`
	Expected uint32 `json:"expected"`
	Actual   uint32 `json:"actual"`
	OK       bool   `json:"ok"`
}

// Checksum returns the IEEE CRC32 of payload, the checksum VPK stores per entry.
func Checksum(payload []byte) uint32 { return crc32.ChecksumIEEE(payload) }

// VerifyPayload reports whether payload matches the stored checksum of e.
func VerifyPayload(e Entry, payload []byte) bool { return Checksum(payload) == e.CRC }

// Verify streams the entry at path and compares its checksum. A mismatch is a
// result with OK=false, not an error; errors mean the bytes could not be read.
func (a *Archive) Verify(path string) (VerifyResult, error) {
	e, err := a.entry("verify", path)
	if err != nil {
		return VerifyResult{Path: CleanPath(path)}, err
	}
	return a.verifyEntry(e)
}

func (a *Archive) verifyEntry(e Entry) (VerifyResult, error) {
	er, err := a.openEntry(e)
	if err != nil {
		return VerifyResult{Path: e.Path, Expected: e.CRC}, err
	}
	if _, err := io.Copy(io.Discard, er); err != nil {
		return VerifyResult{Path: e.Path, Expected: e.CRC, Actual: er.Sum32()}, err
	}
	res := er.Verify()
	if !res.OK {
		a.logger.Warn("checksum mismatch", "entry", e.Path, "want", e.CRC, "got", res.Actual)
	}
	return res, nil
}

// VerifyReport collects VerifyAll results in catalog order.
type VerifyReport struct {
	Results  []VerifyResult   `json:"results"`
	Errors   map[string]error `json:"-"`
	Canceled bool             `json:"canceled,omitempty"`
}

// Failed counts entries that mismatched or could not be read.
func (r VerifyReport) Failed() int {
	n := len(r.Errors)
	for _, res := range r.Results {
		if _, failed := r.Errors[res.Path]; !failed && !res.OK {
			n++
		}
	}
	return n
}

// VerifyAll checks every entry matching f with up to workers goroutines.
// Cancellation stops scheduling new entries.
func (a *Archive) VerifyAll(ctx context.Context, f Filter, workers int) (VerifyReport, error) {
	if a.closed.Load() {
		return VerifyReport{}, newError("verify", ErrClosed, a.path, -1, nil)
	}
	entries := slices.Collect(a.Entries(f))
	results := make([]VerifyResult, len(entries))
	attempted := make([]bool, len(entries))
	report := VerifyReport{Errors: make(map[string]error)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(max(workers, 1))
	for i, e := range entries {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}
		attempted[i] = true
		g.Go(func() error {
			res, err := a.verifyEntry(e)
			results[i] = res
			if err != nil {
				mu.Lock()
				report.Errors[e.Path] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	for i, ok := range attempted {
		if ok {
			report.Results = append(report.Results, results[i])
		}
	}
	return report, nil
}
