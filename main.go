package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	jsonOut := flag.Bool("json", false, "write the evaluated meshes as JSON to stdout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-json] <script.pmesh>\n", os.Args[0])
		os.Exit(2)
	}

	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("reading script: %v", err)
	}

	app := NewApp()
	app.startup(context.Background())
	result := app.Evaluate(string(source))

	for _, e := range result.Errors {
		if e.Line > 0 {
			fmt.Fprintf(os.Stderr, "%s:%d: %s\n", flag.Arg(0), e.Line, e.Message)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", flag.Arg(0), e.Message)
		}
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encoding result: %v", err)
		}
		return
	}

	for _, m := range result.Meshes {
		fmt.Printf("%s: %d triangles\n", m.Name, len(m.Indices)/3)
	}
}
