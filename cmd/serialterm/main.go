package main

import "github.com/allbin/serialport/internal/cli"

func main() {
	cli.Execute()
}
