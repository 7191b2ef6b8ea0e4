// Command vpk lists, verifies, extracts and builds Valve VPK archives and
// manages a folder of game addons.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		code := 1
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		}
		if exitErr == nil || exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("error:"), err)
		}
		stop()
		os.Exit(code)
	}
}
