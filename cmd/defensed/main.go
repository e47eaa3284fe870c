// Command defensed evaluates and manages defenses declared in a YAML file.
package main

import "github.com/jassus213/go-defense/cmd/defensed/cmd"

func main() {
	cmd.Execute()
}
