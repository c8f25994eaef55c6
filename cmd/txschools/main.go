package main

import (
	"txschools-scraper/cmd/txschools/commands"
	"txschools-scraper/lib/osutil"
)

func main() {
	commands.ExecuteContext(osutil.SignalContext())
}
