package main

import "github.com/timvw/oscwatch/cmd"

func main() {
	cmd.Execute()
}
