package main

import (
	"github.com/MeKo-Tech/platescan/cmd/platescan/cmd"
)

func main() {
	cmd.Execute()
}
