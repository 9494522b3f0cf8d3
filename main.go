package main

import "github.com/CraigKelly/marglike/cmd"

func main() {
	cmd.Execute()
}
