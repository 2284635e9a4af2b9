package main

import "github.com/ponyo877/roomcast/server/cmd"

func main() {
	cmd.Execute()
}
