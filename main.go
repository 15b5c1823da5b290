package main

import "github.com/twiced-technology-gmbh/dirwatch/cmd"

func main() {
	cmd.Execute()
}
