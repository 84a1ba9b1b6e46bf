// Command det-search builds and queries keyword indexes over extracted PDF
// pages, and runs the filter-job worker and HTTP API.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
