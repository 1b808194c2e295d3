package main

import (
	"fmt"
	"os"

	"github.com/sandeepkv93/product-catalog/internal/tools/common"
	tool "github.com/sandeepkv93/product-catalog/internal/tools/migrate"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(common.ExitCode(err))
	}
}
