// classgraph - field access and call graphs for Java classes.
//
// classgraph parses a Java class, classifies every member access inside
// its methods as a read, write or call, and renders the result as an
// interactive graph.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/classgraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
