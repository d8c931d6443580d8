package main

import "exchange-rates-client/internal/cli"

func main() {
	cli.Execute()
}
