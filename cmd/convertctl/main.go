package main

import (
	"fmt"
	"io"
	"os"

	"github.com/danmuck/gatewaysync/internal/convert"
	"github.com/spf13/pflag"
)

const app = "convertctl"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(app, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.StringP("output", "o", "", "write YAML here instead of stdout")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] <apis.csv>\n\nflags:\n", app)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	in, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", app, err)
		return 1
	}
	defer in.Close()

	out := stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", app, err)
			return 1
		}
		defer f.Close()
		out = f
	}
	if err := convert.Convert(in, out); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", app, err)
		return 1
	}
	return 0
}
