package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/careercompass/internal/app"
)

func main() {
	// ローカル開発用。.envがなくてもエラーにしない。
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "careercompass: %v\n", err)
		os.Exit(1)
	}
}
