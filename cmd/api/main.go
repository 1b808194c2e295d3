package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"syscall"

	"github.com/oklog/run"

	"github.com/sandeepkv93/product-catalog/internal/di"
)

func main() {
	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := &run.Group{}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		a.Logger.Info("server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		cancel()
		if err := a.Shutdown(context.Background()); err != nil {
			a.Logger.Error("shutdown finished with errors", "error", err)
		}
	})

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		a.Logger.Info("shutdown complete", "signal", sigErr.Signal.String())
		return
	}
	if err != nil {
		a.Logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
