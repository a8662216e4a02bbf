package main

import "github.com/masmetrics/spendguard/internal/cli"

func main() {
	cli.Execute()
}
