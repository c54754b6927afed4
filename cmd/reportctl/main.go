package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/cli"
	"github.com/danmuck/gatewaysync/internal/report"
)

const app = "reportctl"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run writes the services report to the given path, or stdout for "-".
func run(args []string, stdout, stderr io.Writer) int {
	fs, common := cli.NewFlagSet(app, "[flags] <report.csv|->", stderr)
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
	env, err := cli.Start(app, cfg)
	if err != nil {
		return cli.Fail(stderr, app, err)
	}
	defer env.Close()

	services, err := admin.List[admin.Service](context.Background(), env.Client, admin.ServicesPath(), cfg.Limits.Services)
	if err != nil {
		return cli.Fail(stderr, app, err)
	}

	out := stdout
	if path := fs.Arg(0); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return cli.Fail(stderr, app, err)
		}
		defer f.Close()
		out = f
	}
	if err := report.WriteServices(out, services); err != nil {
		return cli.Fail(stderr, app, fmt.Errorf("write report: %w", err))
	}
	env.Logger.Info().Int("services", len(services)).Str("path", fs.Arg(0)).Msg("report written")
	return 0
}
