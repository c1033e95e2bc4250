package main

import "chatwidget-cli/cmd"

func main() {
	cmd.Execute()
}
