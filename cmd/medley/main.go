package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"medley/internal/core"
	"medley/internal/server/service"
)

type uploadResponse struct {
	Success bool              `json:"success"`
	Results []service.Outcome `json:"results"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "medley server URL")
	user := flag.String("user", "", "user namespace to upload into")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		os.Exit(1)
	}

	files, err := core.Resolve(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: nothing to upload")
		os.Exit(1)
	}

	body, contentType, err := core.BuildPayload(*user, files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building payload: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(*server+"/api/upload", contentType, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error uploading: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: server returned %s\n", resp.Status)
		os.Exit(1)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding response: %v\n", err)
		os.Exit(1)
	}

	var failed int
	for _, outcome := range result.Results {
		if outcome.OK {
			fmt.Printf("✓ %s\n", outcome.RelPath)
		} else {
			fmt.Printf("✗ %s: %s\n", outcome.Filename, outcome.Reason)
			failed++
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d files rejected\n", failed, len(result.Results))
		os.Exit(1)
	}
	fmt.Printf("\nUploaded %d files\n", len(result.Results))
}
