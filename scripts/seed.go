// Seed script that loads a rules file and a few memories into a running
// reflex server.
// Run with: go run ./scripts/seed.go [rules.yaml]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ruleSpec struct {
	Pattern     string  `yaml:"pattern" json:"pattern"`
	Action      string  `yaml:"action" json:"action"`
	Priority    float64 `yaml:"priority,omitempty" json:"priority,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

type seedFile struct {
	Rules    []ruleSpec `yaml:"rules"`
	Memories []string   `yaml:"memories"`
	Thoughts []string   `yaml:"thoughts"`
}

func main() {
	// Load environment
	envFile := os.Getenv("REFLEX_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	baseURL := os.Getenv("REFLEX_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	path := "rules.example.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	token := os.Getenv("API_TOKEN")

	for _, r := range seed.Rules {
		if err := post(client, baseURL+"/v1/rules", token, r); err != nil {
			log.Fatalf("Failed to create rule %s: %v", r.Pattern, err)
		}
		fmt.Printf("Created rule: %s => %s\n", r.Pattern, r.Action)
	}

	for _, m := range seed.Memories {
		if err := post(client, baseURL+"/v1/memory", token, map[string]string{"content": m}); err != nil {
			fmt.Printf("Skipped memory %q: %v\n", m, err)
			continue
		}
		fmt.Printf("Stored memory: %s\n", m)
	}

	for _, text := range seed.Thoughts {
		if err := post(client, baseURL+"/v1/thoughts", token, map[string]string{"type": "INPUT", "text": text}); err != nil {
			log.Fatalf("Failed to create thought %s: %v", text, err)
		}
		fmt.Printf("Created thought: %s\n", text)
	}

	fmt.Println("\nSeed complete!")
	fmt.Printf("  rules:    %d\n", len(seed.Rules))
	fmt.Printf("  memories: %d\n", len(seed.Memories))
	fmt.Printf("  thoughts: %d\n", len(seed.Thoughts))
}

func post(client *http.Client, url, token string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
