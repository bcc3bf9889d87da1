package main

import "dqx0.com/go/wireclient/internal/cli"

func main() {
	cli.Execute()
}
