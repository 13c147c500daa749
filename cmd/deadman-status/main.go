package main

import "github.com/oshokin/dead-man-switch/cmd/deadman-status/cmd"

func main() {
	cmd.Execute()
}
