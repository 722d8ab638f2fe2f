package main

import "github.com/MeKo-Tech/osmraster/internal/cmd"

func main() {
	cmd.Execute()
}
