package main

import (
	"log"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
