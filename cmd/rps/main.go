package main

import "github.com/mcoot/rps-ledger/internal/cli"

func main() {
	cli.Execute()
}
