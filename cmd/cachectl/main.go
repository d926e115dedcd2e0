// Command cachectl inspects and prunes the locator's cache store.
//
// Usage:
//
//	cachectl stats
//	cachectl list nominatim
//	cachectl evict nominatim "ottenhofen b. münchen"
//	cachectl delete-user 1234
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newApp(os.Stdout)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
