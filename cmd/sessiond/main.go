package main

import "github.com/miradorhq/sessiond/cmd/sessiond/cmd"

func main() {
	cmd.Execute()
}
