package main

import "github.com/earnly/earnly/internal/cli"

func main() {
	cli.Execute()
}
