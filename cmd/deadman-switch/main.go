package main

import "github.com/oshokin/dead-man-switch/cmd/deadman-switch/cmd"

func main() {
	cmd.Execute()
}
