// The main package for the digest executable.
package main

import (
	"github.com/JakeFAU/research-digest/cmd"
)

func main() {
	cmd.Execute()
}
