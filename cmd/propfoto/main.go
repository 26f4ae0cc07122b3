package main

import "github.com/propfoto/propfoto/cmd/propfoto/cmd"

func main() {
	cmd.Execute()
}
