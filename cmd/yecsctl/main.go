package main

import (
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.IsConfiguration(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
