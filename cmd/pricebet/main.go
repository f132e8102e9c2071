package main

import (
	"price-action-bets/internal/cli"
)

func main() {
	cli.Execute()
}
