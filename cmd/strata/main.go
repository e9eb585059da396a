// Command strata is the structural pattern extraction CLI.
package main

import "github.com/custodia-labs/strata-cli/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
