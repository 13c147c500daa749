package main

import "github.com/oshokin/dead-man-switch/cmd/deadman-checkin/cmd"

func main() {
	cmd.Execute()
}
