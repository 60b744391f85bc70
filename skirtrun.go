// Command-line driver for dispatching simulations to remote hosts.
//
// Run `skirtrun help` for help.

package main

import (
	"fmt"
	"os"
	"sort"
)

type command struct {
	help    string
	handler func(arg0 string, args []string) error
}

var commandSummary = "<verb> <option> ..."

var commands = map[string]command{
	"run": command{
		"Stage one or more simulations on a remote host and start them",
		runSimulations,
	},
	"status": command{
		"Show the status of every simulation registered for a host",
		showStatus,
	},
	"retrieve": command{
		"Download the output of finished simulations and mark them retrieved",
		retrieveSimulations,
	},
}

func main() {
	if len(os.Args) < 2 {
		usage(1)
	}
	if entry, found := commands[os.Args[1]]; found {
		err := entry.handler(os.Args[0], os.Args[2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "SKIRTRUN FAILED\n%v\n\n", err)
			usage(1)
		}
	} else if os.Args[1] == "help" {
		usage(0)
	} else {
		usage(1)
	}
}

func usage(code int) {
	out := os.Stdout
	if code != 0 {
		out = os.Stderr
	}
	fmt.Fprintf(out, "Usage of %s:\n\n  %s %s\n\n", os.Args[0], os.Args[0], commandSummary)
	fmt.Fprintf(out, "where <verb> is one of\n\n")
	entries := make(sort.StringSlice, 0)
	for name, command := range commands {
		entries = append(entries, "  "+name+"\n    "+command.help)
	}
	sort.Sort(entries)
	for _, e := range entries {
		fmt.Fprintln(out, e)
	}
	fmt.Fprintln(out, "\nAll verbs accept -h to print verb-specific help.")
	fmt.Fprintln(out, "Host configurations are read from <host-dir>/<host>.ini.")
	os.Exit(code)
}
