package main

import "github.com/garyjia/ethics-review/internal/cli"

func main() {
	cli.Execute()
}
