// cmd/tools/crm-query/main.go
package main

import (
	"os"

	"salesforce-query-workers/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
