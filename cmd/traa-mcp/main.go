package main

import "github.com/opentraa/traa-mcp/cmd/traa-mcp/commands"

func main() {
	commands.Execute()
}
