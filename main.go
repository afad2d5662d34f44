package main

import "github.com/yangatekane/bh-ea-dashboard/cmd"

func main() {
	cmd.Execute()
}
