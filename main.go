package main

import (
	"os"

	"github.com/issueradar/issueradar/cmd"
)

var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	os.Exit(cmd.Execute())
}
