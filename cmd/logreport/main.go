package main

import (
	"context"
	"os"

	"github.com/gsdriver/alexa-logger/cmd/mainconfig"
)

func main() {
	mainconfig.LoadEnv()
	if err := run(context.Background(), os.Args, os.Stdout, os.Stderr, os.Stdin, awsPipeline); err != nil {
		os.Exit(1)
	}
}
