// The main package for the redditcorpus executable.
package main

import (
	"github.com/akontos/redditcorpus/cmd"
)

func main() {
	cmd.Execute()
}
