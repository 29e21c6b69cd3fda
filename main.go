package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/webrunner/webrunner/browser"
	"github.com/webrunner/webrunner/config"
	"github.com/webrunner/webrunner/log"
	"github.com/webrunner/webrunner/rules"
	"github.com/webrunner/webrunner/runner"
	"github.com/webrunner/webrunner/server"
)

var version = "dev"

// sessionOpener adapts the browser launcher to the interpreter's interface.
type sessionOpener struct {
	launcher *browser.Launcher
}

func (o sessionOpener) NewSession(ctx context.Context, direct bool) (runner.PageSession, error) {
	return o.launcher.NewSession(ctx, direct)
}

func main() {
	configLoc := flag.String("c", "", "The location of the configuration yml file. If empty the configuration is read from the environment only.")
	rulesLoc := flag.String("rules", "", "Override the built-in extraction rule table with the given yml file.")
	debugFlag := flag.Bool("debug", false, "Prints debug logs.")
	printVersion := flag.Bool("v", false, "The version of webrunner.")
	flag.Parse()

	if *printVersion {
		buildInfo, ok := debug.ReadBuildInfo()
		if ok {
			if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
				fmt.Println(buildInfo.Main.Version)
				return
			}
		}
		fmt.Println(version)
		return
	}

	config.Debug = *debugFlag
	log.InitializeDefaultLogger()

	cfg, err := config.New(*configLoc)
	if err != nil {
		slog.Error(fmt.Sprintf("failed to read configuration: %v", err))
		os.Exit(1)
	}

	table := rules.DefaultTable()
	rulesFile := cfg.RulesFile
	if *rulesLoc != "" {
		rulesFile = *rulesLoc
	}
	if rulesFile != "" {
		table, err = rules.LoadFile(rulesFile)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to load extraction rules: %v", err))
			os.Exit(1)
		}
		slog.Info("loaded extraction rules", slog.String("file", rulesFile))
	}

	launcher := browser.NewLauncher(cfg)
	run := runner.New(cfg, sessionOpener{launcher: launcher}, table)
	srv := server.New(cfg, run)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error(fmt.Sprintf("server failed: %v", err))
		os.Exit(1)
	}
	slog.Info("runner stopped")
}
