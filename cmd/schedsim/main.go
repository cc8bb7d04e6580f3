// Command schedsim runs priority scheduling scenarios on a kernel and prints
// what the scheduler decided.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
