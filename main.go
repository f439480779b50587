package main

import "github.com/semdex/semdex/cli"

func main() {
	cli.Execute()
}
