package main

import "deckhand/cmd/deckhand/cmd"

func main() {
	cmd.Execute()
}
