package main

import "bulwark/cmd/bulwarkctl/cmd"

func main() {
	cmd.Execute()
}
