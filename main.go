package main

import "kglogistics/cmd"

func main() {
	cmd.Execute()
}
