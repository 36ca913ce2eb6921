package main

import (
	"os"

	"github.com/surrealdb/recordcodec/contrib/recordtool"
)

func main() {
	if err := recordtool.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
