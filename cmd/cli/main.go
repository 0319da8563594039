// Command tl is a CLI client for the trustlend service.
package main

import (
	"fmt"
	"os"

	"google.golang.org/grpc/status"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCommand(&rootOptions{}).Execute(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	if st, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", st.Code(), st.Message())
	} else {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(1)
}
