package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newApp(os.Stdout)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatRPCError(err))
		os.Exit(1)
	}
}
