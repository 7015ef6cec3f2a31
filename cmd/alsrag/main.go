package main

import "alsrag/internal/cli"

func main() {
	cli.Execute()
}
