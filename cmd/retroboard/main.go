package main

import (
	"fmt"
	"os"

	"github.com/yungbote/retroboard-backend/cmd/retroboard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
