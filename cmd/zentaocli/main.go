package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"zentaocli/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	a := &app{}
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC RECOVERED: %v\n%s\n", r, debug.Stack())
			if a.logger != nil {
				a.logger.Error("zentaocli panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			code = 1
		}
		a.close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, tui.ErrorStyle.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}
