// Command vehicle runs the Goliath vehicle: it drives the tracks, the status
// display and the video streamer for one operator session at a time.
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
