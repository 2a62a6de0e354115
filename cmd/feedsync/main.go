package main

import "github.com/zfogg/feedsync/internal/cmd"

func main() {
	cmd.Execute()
}
