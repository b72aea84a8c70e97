package main

import "github.com/GIGOpenSource/Collide-sub009/cmd/blindbox-cli/cmd"

func main() {
	cmd.Execute()
}
