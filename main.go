package main

import (
	"github.com/tanpawarit/bitebot/cmd"
	_ "github.com/tanpawarit/bitebot/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
