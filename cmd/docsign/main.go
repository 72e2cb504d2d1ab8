package main

import "github.com/telecuidar/docsign/cli"

func main() {
	cli.Run()
}
