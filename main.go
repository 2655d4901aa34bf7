package main

import "github.com/coastertools/buildscale/cmd"

func main() {
	cmd.Execute()
}
