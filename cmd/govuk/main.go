// Command govuk queries the GOV.UK content and search APIs from the
// terminal and can serve them through a rate-limited local proxy.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
