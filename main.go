// The main package for the jobscout executable.
package main

import (
	"github.com/JakeFAU/jobscout/cmd"
)

func main() {
	cmd.Execute()
}
