package main

import "github.com/zfogg/circle/cli/internal/cmd"

func main() {
	cmd.Execute()
}
