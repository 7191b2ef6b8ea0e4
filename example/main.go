package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"slices"

	vpk "github.com/javi11/govpk"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <archive_dir>.vpk [ext]", os.Args[0])
	}
	arc, err := vpk.Open(os.Args[1])
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer arc.Close()

	var f vpk.Filter
	if len(os.Args) > 2 {
		f.Ext = os.Args[2]
	}
	// entries JSON in tree order
	entries := slices.Collect(arc.Entries(f))
	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
}
