package main

import "github.com/iksnae/insight-dash/cmd"

func main() {
	cmd.Execute()
}
