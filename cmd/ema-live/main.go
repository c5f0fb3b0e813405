package main

import "github.com/koscakluka/ema-live/internal/cli"

func main() {
	cli.Execute()
}
