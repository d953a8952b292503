package main

import "stripd/cmd"

func main() {
	cmd.Execute()
}
