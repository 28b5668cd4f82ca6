package main

import "workbench/internal/cli"

func main() {
	cli.Execute()
}
