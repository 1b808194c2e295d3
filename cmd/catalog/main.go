package main

import (
	"fmt"
	"os"

	tool "github.com/sandeepkv93/product-catalog/internal/tools/catalog"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
