package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type scenario struct {
	Name     string          `json:"name"`
	Critical bool            `json:"critical"`
	Request  json.RawMessage `json:"request"`
	Expect   expectation     `json:"expect"`
}

type expectation struct {
	Success            *bool    `json:"success,omitempty"`
	RequiredDailyHours *float64 `json:"requiredDailyHours,omitempty"`
	ActualEndTime      string   `json:"actualEndTime,omitempty"`
}

type config struct {
	Scenarios []scenario `json:"scenarios"`
}

type verdict struct {
	Scenario scenario
	Status   int
	Diffs    []string
	Error    error
	Duration time.Duration
}

type reportBody struct {
	Data struct {
		Success            bool    `json:"success"`
		RequiredDailyHours float64 `json:"requiredDailyHours"`
		ActualEndTime      string  `json:"actualEndTime"`
	} `json:"data"`
}

func main() {
	var (
		base          string
		scenariosPath string
		token         string
		timeout       time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "PlanFab API base URL")
	flag.StringVar(&scenariosPath, "scenarios", filepath.Join("scripts", "schedule_verify", "scenarios.json"), "Path to JSON scenarios file")
	flag.StringVar(&token, "token", "", "Bearer token for authenticated endpoints")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	scenarios, err := loadScenarios(scenariosPath)
	if err != nil {
		log.Fatalf("failed to load scenarios: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		verdicts []verdict
		breaking int
		optional int
	)

	for _, sc := range scenarios {
		v := runScenario(client, base, token, sc)
		if v.Error != nil || len(v.Diffs) > 0 {
			if sc.Critical {
				breaking++
			} else {
				optional++
			}
		}
		verdicts = append(verdicts, v)
	}

	printReport(verdicts)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadScenarios(path string) ([]scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios defined in %s", path)
	}
	return cfg.Scenarios, nil
}

func runScenario(client *http.Client, base, token string, sc scenario) verdict {
	v := verdict{Scenario: sc}

	url := base + "/api/v1/schedule/simulate"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(sc.Request))
	if err != nil {
		v.Error = err
		return v
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	v.Duration = time.Since(start)
	if err != nil {
		v.Error = fmt.Errorf("simulate request failed: %w", err)
		return v
	}
	defer resp.Body.Close()

	v.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		v.Diffs = append(v.Diffs, fmt.Sprintf("status %d, want 200", resp.StatusCode))
		return v
	}

	var body reportBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		v.Error = fmt.Errorf("decode response: %w", err)
		return v
	}

	if sc.Expect.Success != nil && body.Data.Success != *sc.Expect.Success {
		v.Diffs = append(v.Diffs, fmt.Sprintf("success=%t, want %t", body.Data.Success, *sc.Expect.Success))
	}
	if sc.Expect.RequiredDailyHours != nil {
		if math.Abs(body.Data.RequiredDailyHours-*sc.Expect.RequiredDailyHours) > 0.005 {
			v.Diffs = append(v.Diffs, fmt.Sprintf("requiredDailyHours=%.2f, want %.2f", body.Data.RequiredDailyHours, *sc.Expect.RequiredDailyHours))
		}
	}
	if sc.Expect.ActualEndTime != "" {
		got, gerrp := time.Parse(time.RFC3339, body.Data.ActualEndTime)
		want, werrp := time.Parse(time.RFC3339, sc.Expect.ActualEndTime)
		if gerrp != nil || werrp != nil || !got.Equal(want) {
			v.Diffs = append(v.Diffs, fmt.Sprintf("actualEndTime=%s, want %s", body.Data.ActualEndTime, sc.Expect.ActualEndTime))
		}
	}
	return v
}

func printReport(results []verdict) {
	fmt.Println("Schedule Verification Report")
	fmt.Println("============================")
	for _, res := range results {
		status := "PASS"
		if res.Error != nil {
			status = "ERROR"
		} else if len(res.Diffs) > 0 {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s (%s)\n", status, res.Scenario.Name, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		for _, d := range res.Diffs {
			fmt.Printf("  %s\n", d)
		}
		if len(res.Diffs) > 0 {
			fmt.Printf("  Critical: %t\n", res.Scenario.Critical)
		}
	}
}
