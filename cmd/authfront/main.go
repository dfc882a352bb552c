// Command authfront runs the auth service HTTP front end.
//
// It serves the health check and the metrics endpoint, records request
// metrics, polls the user store for the users gauge and proxies auth and users
// routes to the upstream auth service.
//
// Run against a local demo store:
//
//	go run ./cmd/authfront --dev
//
// Configuration comes from flags or AUTHFRONT_* environment variables; the
// bare UPDATE_INTERVAL_MS and PORT variables are honoured as well.
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
