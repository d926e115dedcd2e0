// Command locator scrapes the forum member directory, geocodes each member's
// profile location and writes the resolved members to the export file and,
// when configured, to Kafka.
//
// Usage:
//
//	locator run [--fast] [--members-file members.json] [--config config.yaml]
//	locator normalize "bei München" "D-80331 München"
//	locator locate "Graz, Österreich"
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
