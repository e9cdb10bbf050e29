package main

import "github.com/MeKo-Tech/fractalterrain/internal/cmd"

func main() {
	cmd.Execute()
}
