package main

import (
	"fmt"
	"os"

	"github.com/danmuck/gatewaysync/internal/config"
	"github.com/danmuck/gatewaysync/internal/desired"
	"github.com/spf13/pflag"
)

func main() {
	kind := pflag.String("kind", "config", "template kind: config|services|consumers")
	output := pflag.String("output", "", "output path for the template")
	validate := pflag.Bool("validate", false, "validate an existing file instead of writing one")
	input := pflag.String("input", "", "file to validate")
	force := pflag.Bool("force", false, "overwrite an existing file")
	pflag.Parse()

	if *validate {
		if *input == "" {
			fatalf("--input is required with --validate")
		}
		var err error
		switch *kind {
		case "config":
			_, err = config.Load(*input)
		case "services":
			_, err = desired.LoadServices(*input)
		case "consumers":
			_, err = desired.LoadConsumers(*input)
		default:
			fatalf("unknown kind: %s", *kind)
		}
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("validated %s file at %s\n", *kind, *input)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "config":
			target = "gatewaysync.toml"
		case "services":
			target = "services.yaml"
		case "consumers":
			target = "consumers.yaml"
		default:
			fatalf("unknown kind: %s", *kind)
		}
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("wrote %s template to %s\n", *kind, target)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "configgen: "+format+"\n", args...)
	os.Exit(1)
}
