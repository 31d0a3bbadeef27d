package main

import (
	"github.com/rostredko/smc-bot-sub000/internal/cli"
)

func main() {
	cli.Execute()
}
