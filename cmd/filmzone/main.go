// The filmzone CLI bundles the development workflows for the ingestion
// service: driving the docker-compose stack, running tests, and talking to a
// running server (submitting jobs, polling status, tailing progress).
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	composeFile string
	serverURL   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "filmzone: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "filmzone",
		Short:        "FilmZone ingestion development CLI",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file for stack commands")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of a running ingestion server")
	cmd.AddCommand(
		newStackCmd("build", "Build the Docker images"),
		newStackCmd("up", "Start the stack", "-d", "--build"),
		newStackCmd("down", "Stop the stack"),
		newStackCmd("logs", "Tail stack logs", "-f"),
		newTestCmd(),
		newServeCmd(),
		newSubmitCmd(),
		newStatusCmd(),
		newWatchCmd(),
	)
	return cmd
}

// newStackCmd wraps one docker compose verb, with extra defaults appended
// before any user arguments.
func newStackCmd(verb, short string, extra ...string) *cobra.Command {
	return &cobra.Command{
		Use:   verb,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := append([]string{"compose", "-f", composeFile, verb}, extra...)
			composeArgs = append(composeArgs, args...)
			return runCommand(cmd.Context(), "docker", composeArgs...)
		},
	}
}

func newTestCmd() *cobra.Command {
	var race bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			if len(args) == 0 {
				args = []string{"./..."}
			}
			return runCommand(cmd.Context(), "go", append(goArgs, args...)...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable the race detector")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion server from source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), "go", append([]string{"run", "./cmd/server"}, args...)...)
		},
	}
}

func newSubmitCmd() *cobra.Command {
	var (
		scope      string
		sourceType string
		targetID   int64
		linkURL    string
		quality    string
		language   string
		vipOnly    bool
		active     bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a link-based ingestion job to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]any{
				"sourceType": sourceType,
				"targetId":   targetID,
				"linkUrl":    linkURL,
				"quality":    quality,
				"language":   language,
				"isVipOnly":  vipOnly,
				"isActive":   active,
			})
			if err != nil {
				return err
			}
			endpoint := fmt.Sprintf("%s/uploads/%ss", strings.TrimSuffix(serverURL, "/"), scope)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			return printResponse(req)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "movie", "Target scope: movie or episode")
	cmd.Flags().StringVar(&sourceType, "source-type", "vimeo-link", "Source type of the submission")
	cmd.Flags().Int64Var(&targetID, "target-id", 0, "Movie or episode id the source attaches to")
	cmd.Flags().StringVar(&linkURL, "link", "", "Remote video URL")
	cmd.Flags().StringVar(&quality, "quality", "", "Quality tag (defaults server-side)")
	cmd.Flags().StringVar(&language, "language", "", "Language tag (defaults server-side)")
	cmd.Flags().BoolVar(&vipOnly, "vip-only", false, "Restrict the source to VIP accounts")
	cmd.Flags().BoolVar(&active, "active", true, "Activate the source on completion")
	cmd.MarkFlagRequired("target-id")
	cmd.MarkFlagRequired("link")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <jobId>",
		Short: "Fetch the status record of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := fmt.Sprintf("%s/uploads/%s", strings.TrimSuffix(serverURL, "/"), args[0])
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}
			return printResponse(req)
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <jobId>",
		Short: "Tail a job's progress events until it settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := fmt.Sprintf("%s/uploads/%s/events", strings.TrimSuffix(serverURL, "/"), args[0])
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("server answered %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				if data, ok := strings.CutPrefix(line, "data: "); ok {
					fmt.Println(data)
				}
			}
			return scanner.Err()
		},
	}
}

func printResponse(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server answered %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
