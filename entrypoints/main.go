package main

import (
	"github.com/Laisky/henk-fabric/cmd"
)

func main() {
	cmd.Execute()
}
