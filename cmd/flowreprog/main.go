// flowreprog reprograms DirectFlow flow entries without dropping
// traffic.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-flowreprog/cmd/flowreprog/cli"
)

func main() {
	var c cli.CLI
	kctx := kong.Parse(&c, cli.KongOptions()...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err := kctx.Run(&c)
	cancel()
	kctx.FatalIfErrorf(err)
}
