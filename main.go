// The main package for the jobscout executable.
package main

import (
	"github.com/JakeFAU/local-job-scraper/cmd"
)

func main() {
	cmd.Execute()
}
