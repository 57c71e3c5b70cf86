package main

import "github.com/revmon-dev/revmon/internal/commands"

func main() {
	commands.Execute()
}
