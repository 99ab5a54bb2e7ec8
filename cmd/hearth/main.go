package main

import "github.com/hearthkeep/hearth/internal/cli"

func main() {
	cli.Execute()
}
