package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/gatewaysync/internal/cli"
	"github.com/danmuck/gatewaysync/internal/desired"
)

const app = "servicesctl"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs, common := cli.NewFlagSet(app, "[flags] <services-file>", stderr)
	common.AddSkipFixup()
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	cfg, err := common.Resolve()
	if err != nil {
		return cli.Fail(stderr, app, err)
	}
	services, err := desired.LoadServices(fs.Arg(0))
	if err != nil {
		return cli.Fail(stderr, app, err)
	}

	env, err := cli.Start(app, cfg)
	if err != nil {
		return cli.Fail(stderr, app, err)
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := env.Reconciler.SyncServices(ctx, services)
	env.Logger.Info().Object("summary", summary).Msg("services reconciled")
	if err != nil {
		return cli.Fail(stderr, app, err)
	}
	if cfg.SkipFixup {
		env.Logger.Info().Msg("acl fixup skipped")
		return 0
	}
	env.Reconciler.FixupACL(ctx)
	return 0
}
