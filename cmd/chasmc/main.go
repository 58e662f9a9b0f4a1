package main

import (
	"fmt"
	"os"
	"strings"

	"chasm"

	"github.com/jessevdk/go-flags"
)

var opts struct {
	Output string `short:"o" long:"output" description:"path of the generated module"`

	Args struct {
		Source string `positional-arg-name:"source" description:"chasm source file"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	source, err := os.ReadFile(opts.Args.Source)
	check(err)
	binary, err := chasm.Compile(source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	output := opts.Output
	if output == "" {
		output = strings.TrimSuffix(opts.Args.Source, ".chasm") + ".wasm"
	}
	check(os.WriteFile(output, binary, 0o644))
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
