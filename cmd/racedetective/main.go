// racedetective stress tests the racefree primitives. See "racedetective --help".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gostdlib/racefree/cmd/racedetective/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
