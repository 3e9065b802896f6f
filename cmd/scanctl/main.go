// Command scanctl drives a running scan API from the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/infra/httpserver"
	"github.com/bryanwahyu/skinlytics/internal/log"
)

// errScanFailed marks an attempt that ended in the error state.
var errScanFailed = errors.New("scan failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := &cli.Command{
		Name:      "scanctl",
		Usage:     "upload skin images and follow scan history",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "base URL of the scan API",
				Sources: cli.EnvVars("SKINLYTICS_SERVER"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 2 * time.Minute,
				Usage: "request timeout; 0 disables it",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print raw JSON",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Init(cmd.String("log-level"), "")
			return ctx, nil
		},
		Commands: []*cli.Command{
			scanCommand(stdout),
			historyCommand(stdout),
			watchCommand(stdout),
		},
	}
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := app.Run(ctx, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errScanFailed):
		return 1
	default:
		fmt.Fprintf(stderr, "scanctl: %v\n", err)
		return 2
	}
}

func clientFor(cmd *cli.Command) *apiClient {
	return newAPIClient(cmd.String("server"), &http.Client{Timeout: cmd.Duration("timeout")})
}

func scanCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "upload an image and wait for the result",
		ArgsUsage: "<image-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "handle",
				Usage: "scan an image the server can already reach (file:// or s3://) instead of uploading",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c := clientFor(cmd)
			var (
				st  httpserver.StateResponse
				err error
			)
			if h := cmd.String("handle"); h != "" {
				st, err = c.startHandle(ctx, h)
			} else {
				if cmd.Args().Len() != 1 {
					return errors.New("scan takes exactly one image file")
				}
				st, err = c.upload(ctx, cmd.Args().First())
			}
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				if err := json.NewEncoder(stdout).Encode(st); err != nil {
					return err
				}
			} else if st.Result != nil {
				printResult(stdout, *st.Result)
			} else {
				fmt.Fprintf(stdout, "error: %s\n", st.Message)
			}
			if st.State != "success" {
				return errScanFailed
			}
			return nil
		},
	}
}

func historyCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "list stored results, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "show at most this many records"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			list, err := clientFor(cmd).history(ctx, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return json.NewEncoder(stdout).Encode(list)
			}
			printHistory(stdout, list)
			return nil
		},
	}
}

func watchCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "follow state changes and history updates",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Usage: "exit after this many events; 0 follows until interrupted"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// streams are long-lived; only the connect is bounded by --timeout
			c := newAPIClient(cmd.String("server"), &http.Client{})
			limit := int(cmd.Int("count"))
			seen := 0
			raw := cmd.Bool("json")
			return c.stream(ctx, func(ev streamEvent) bool {
				if raw {
					fmt.Fprintf(stdout, "%s %s\n", ev.Name, ev.Data)
				} else {
					printEvent(stdout, ev)
				}
				seen++
				return limit == 0 || seen < limit
			})
		},
	}
}

func printResult(w io.Writer, r domain.ScanResult) {
	fmt.Fprintf(w, "#%d %s\n", r.ID, r.Summary())
	if r.About != "" {
		fmt.Fprintf(w, "\n%s\n", r.About)
	}
	printList(w, "Symptoms", r.CommonSymptoms)
	printList(w, "Treatment", r.TreatmentRecommendations)
	if r.Disclaimer != "" {
		fmt.Fprintf(w, "\n%s\n", r.Disclaimer)
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func printHistory(w io.Writer, list []domain.ScanResult) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no scans yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPREDICTION\tSEVERITY\tLEVEL\tSYMPTOMS")
	for _, r := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Prediction, r.Severity, r.Level(), strings.Join(r.CommonSymptoms, ", "))
	}
	tw.Flush()
}

func printEvent(w io.Writer, ev streamEvent) {
	switch ev.Name {
	case httpserver.EventState:
		var st httpserver.StateResponse
		if err := json.Unmarshal(ev.Data, &st); err != nil {
			fmt.Fprintf(w, "state: %s\n", ev.Data)
			return
		}
		switch {
		case st.Result != nil:
			fmt.Fprintf(w, "state: %s %s\n", st.State, st.Result.Summary())
		case st.Message != "":
			fmt.Fprintf(w, "state: %s %s\n", st.State, st.Message)
		default:
			fmt.Fprintf(w, "state: %s\n", st.State)
		}
	case httpserver.EventHistory:
		var list []domain.ScanResult
		if err := json.Unmarshal(ev.Data, &list); err != nil {
			fmt.Fprintf(w, "history: %s\n", ev.Data)
			return
		}
		latest := "-"
		if len(list) > 0 {
			latest = list[0].Summary()
		}
		fmt.Fprintf(w, "history: %d records, latest %s\n", len(list), latest)
	default:
		fmt.Fprintf(w, "%s: %s\n", ev.Name, ev.Data)
	}
}
