// Command thtask drives a running taskhive gateway over its NATS IPC
// endpoint: submit tasks, inspect the queue, and report executor results.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const ipcTopic = "taskhive.ipc"

type ipcRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type ipcResponse struct {
	OK    bool            `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
	ID    string          `json:"id,omitempty"`
	Tasks []task          `json:"tasks,omitempty"`
	Task  json.RawMessage `json:"task,omitempty"`
	Stats json.RawMessage `json:"stats,omitempty"`
}

type task struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Agent    string `json:"agent,omitempty"`
	Priority string `json:"priority"`
}

func sendIPC(natsURL, reqType string, payload map[string]any) (*ipcResponse, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	defer conn.Close()

	data, err := json.Marshal(ipcRequest{Type: reqType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	msg, err := conn.Request(ipcTopic, data, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ipc request: %w", err)
	}

	var resp ipcResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, `  thtask create --name "..." [--role "..."] [--priority critical|high|medium|low] [--capabilities a,b] [--depends-on id1,id2] [--retries n]`)
	fmt.Fprintln(os.Stderr, "  thtask list")
	fmt.Fprintln(os.Stderr, `  thtask get --id "..."`)
	fmt.Fprintln(os.Stderr, `  thtask complete --id "..." [--output '{"k":"v"}']`)
	fmt.Fprintln(os.Stderr, `  thtask fail --id "..." [--error "..."]`)
	fmt.Fprintln(os.Stderr, `  thtask cancel --id "..."`)
	fmt.Fprintln(os.Stderr, "  thtask stats")
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	rest := os.Args[2:]

	switch command {
	case "create":
		args := parseArgs(rest)
		if args["name"] == "" {
			fatal("--name is required")
		}
		payload := map[string]any{"name": args["name"]}
		if args["role"] != "" {
			payload["required_role"] = args["role"]
		}
		if args["priority"] != "" {
			payload["priority"] = args["priority"]
		}
		if caps := splitList(args["capabilities"]); caps != nil {
			payload["required_capabilities"] = caps
		}
		if deps := splitList(args["depends-on"]); deps != nil {
			payload["depends_on"] = deps
		}
		if args["retries"] != "" {
			retries, err := strconv.Atoi(args["retries"])
			if err != nil {
				fatal("invalid --retries: %v", err)
			}
			payload["max_retries"] = retries
		}
		if args["input"] != "" {
			var input map[string]any
			if err := json.Unmarshal([]byte(args["input"]), &input); err != nil {
				fatal("invalid --input: %v", err)
			}
			payload["input"] = input
		}

		resp, err := sendIPC(natsURL, "create_task", payload)
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Printf("Task created: %s\n", resp.ID)

	case "list":
		resp, err := sendIPC(natsURL, "list_tasks", map[string]any{})
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		if len(resp.Tasks) == 0 {
			fmt.Println("No tasks found.")
		} else {
			for _, t := range resp.Tasks {
				agent := t.Agent
				if agent == "" {
					agent = "-"
				}
				fmt.Printf("  %s  %-11s  %-8s  %s  (%s)\n", t.ID, t.Status, t.Priority, t.Name, agent)
			}
		}

	case "get":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		resp, err := sendIPC(natsURL, "get_task", map[string]any{"id": args["id"]})
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Println(string(resp.Task))

	case "complete":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		payload := map[string]any{"id": args["id"]}
		if args["output"] != "" {
			var output map[string]any
			if err := json.Unmarshal([]byte(args["output"]), &output); err != nil {
				fatal("invalid --output: %v", err)
			}
			payload["output"] = output
		}
		resp, err := sendIPC(natsURL, "complete_task", payload)
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Println("Task completed.")

	case "fail":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		resp, err := sendIPC(natsURL, "fail_task", map[string]any{
			"id":    args["id"],
			"error": args["error"],
		})
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Println("Task failed.")

	case "cancel":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		resp, err := sendIPC(natsURL, "cancel_task", map[string]any{"id": args["id"]})
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Println("Task cancelled.")

	case "stats":
		resp, err := sendIPC(natsURL, "stats", map[string]any{})
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Println(string(resp.Stats))

	default:
		fatal("unknown command: %s", command)
	}
}
