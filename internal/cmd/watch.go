package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zfogg/circle/cli/pkg/config"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/output"
	"github.com/zfogg/circle/cli/pkg/poll"
	"golang.org/x/term"
)

const clearScreen = "\033[H\033[2J"

type delivery[V any] struct {
	v   V
	err error
}

// watch keeps a view open until interrupted. Every poll result is
// rendered; a failed poll leaves the last rendering on screen and prints
// a warning instead. A resource that no longer exists ends the watch.
func watch[V any](cmd *cobra.Command, subscribe func(context.Context, poll.Listener[V]) (*poll.Handle, error), render func(V) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := config.GetString("metrics.addr"); addr != "" && session != nil {
		go func() {
			if err := session.Metrics().Serve(ctx, addr); err != nil {
				logger.Warn("Metrics server stopped", "addr", addr, "error", err)
			}
		}()
	}

	// Only the latest delivery matters; older ones are dropped
	latest := make(chan delivery[V], 1)
	listener := func(v V, err error) {
		select {
		case <-latest:
		default:
		}
		latest <- delivery[V]{v: v, err: err}
	}

	h, err := subscribe(ctx, listener)
	if err != nil {
		return err
	}
	defer h.Stop()

	interactive := output.GetOutputFormat() != output.FormatJSON && term.IsTerminal(int(os.Stdout.Fd()))
	rendered := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-latest:
			if clierrors.IsNotFound(d.err) {
				return d.err
			}
			if d.err != nil && rendered {
				output.PrintWarning("refresh failed, showing last data: %s", clierrors.CategorizeError(d.err).Message)
				continue
			}
			if d.err != nil && isZero(d.v) {
				output.PrintWarning("could not load yet, retrying: %s", clierrors.CategorizeError(d.err).Message)
				continue
			}
			if interactive {
				fmt.Fprint(output.Writer(), clearScreen)
			}
			if err := render(d.v); err != nil {
				return err
			}
			rendered = true
			if d.err != nil {
				output.PrintWarning("refresh failed, showing cached data: %s", clierrors.CategorizeError(d.err).Message)
			}
		}
	}
}

func isZero[V any](v V) bool {
	rv := reflect.ValueOf(&v).Elem()
	return rv.IsZero()
}
