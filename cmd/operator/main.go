// Command operator connects an operator station to a Goliath vehicle and
// forwards controller input read from a local UDP socket.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
