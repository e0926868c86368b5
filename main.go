package main

import "github.com/maximbilan/chatr/cmd"

func main() {
	cmd.Execute()
}
