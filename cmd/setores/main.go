package main

import (
	"log"

	"github.com/mistakeknot/setores/internal/commands"
)

func main() {
	if err := commands.New().Execute(); err != nil {
		log.Fatalf("setores: %v", err)
	}
}
