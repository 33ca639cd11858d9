package main

import (
	"github.com/joho/godotenv"

	"github.com/mj1618/user-routine/cmd"
)

func main() {
	// A missing .env is normal; variables may come from the environment.
	_ = godotenv.Load()
	cmd.Execute()
}
