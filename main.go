package main

import "github.com/spatialstats/occample/cmd"

// TODO: a predict subcommand for posterior prediction at new locations

func main() {
	cmd.Execute()
}
