package main

import "github.com/greyhoundforty/blueterm/cmd"

func main() {
	cmd.Execute()
}
