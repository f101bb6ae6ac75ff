// Command prep runs the batch data-preparation pipelines.
//
//	prep impute --train train.csv --test test.csv
//	prep sparse-pca --n-components 50
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "prep:", err)
		stop()
		os.Exit(1)
	}
}
