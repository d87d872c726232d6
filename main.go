package main

import "github.com/Beastly713/mutafuzz/cmd"

func main() {
	cmd.Execute()
}
