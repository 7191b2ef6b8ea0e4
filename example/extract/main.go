package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	vpk "github.com/javi11/govpk"
)

// This example extracts every entry of an archive into a directory, printing
// progress from a channel while the workers run. Checksum mismatches are
// reported but the file is still written; pass -strict as the third argument
// to drop mismatching files instead.
func main() {
	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <archive_dir>.vpk <output-dir> [-strict]", os.Args[0])
	}
	arc, err := vpk.Open(os.Args[1])
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer arc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progress := make(chan vpk.Progress, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			if p.Err != nil {
				fmt.Printf("[%d/%d] %s: %v\n", p.Done, p.Total, p.Path, p.Err)
				continue
			}
			fmt.Printf("[%d/%d] %s\n", p.Done, p.Total, p.Path)
		}
	}()

	res, err := arc.ExtractAll(ctx, vpk.Filter{}, os.Args[2], vpk.ExtractOptions{
		Strict:   len(os.Args) > 3 && os.Args[3] == "-strict",
		Workers:  4,
		Progress: vpk.ProgressChannel(progress),
	})
	close(progress)
	<-done
	if err != nil {
		log.Fatalf("extract: %v", err)
	}

	var written int64
	mismatched := 0
	for _, r := range res.Results {
		written += r.Bytes
		if r.Err == nil && !r.Checksum.OK {
			mismatched++
		}
	}
	fmt.Printf("Extracted %d of %d entries (%d bytes, %d failed, %d checksum mismatches)\n",
		len(res.Results)-res.Failed(), res.Total, written, res.Failed(), mismatched)
	if res.Canceled {
		fmt.Println("Interrupted before all entries were extracted")
	}
}
