// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/mediamind"
	"github.com/poiesic/mediamind/ai"
	"github.com/poiesic/mediamind/core"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "mediamind",
		Usage: "Turn audio and video recordings into a queryable knowledge base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the pipeline stage workers until interrupted",
				Action: serveCommand,
				Flags:  append(dbFlags(), aiFlags()...),
			},
			{
				Name:      "submit",
				Usage:     "Submit a media file for processing",
				ArgsUsage: "<media-file>",
				Action:    submitCommand,
				Flags: append(append(dbFlags(), aiFlags()...),
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Run the stage workers and block until the job is ready or failed",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Maximum time to wait with --wait",
						Value: 30 * time.Minute,
					},
				),
			},
			{
				Name:      "status",
				Usage:     "Show a job's status and stage errors",
				ArgsUsage: "<job-id>",
				Action:    statusCommand,
				Flags:     dbFlags(),
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about a ready job",
				ArgsUsage: "<job-id> <question>",
				Action:    askCommand,
				Flags:     append(dbFlags(), aiFlags()...),
			},
			{
				Name:      "retry",
				Usage:     "Re-open a failed job at the stage that failed",
				ArgsUsage: "<job-id>",
				Action:    retryCommand,
				Flags:     dbFlags(),
			},
			{
				Name:   "dead-letters",
				Usage:  "List messages that exhausted their retry budget",
				Action: deadLettersCommand,
				Flags:  dbFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
	}
}

func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL for all capabilities",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "transcription-host",
			Usage: "Transcription service host URL (defaults to --host)",
		},
		&cli.StringFlag{
			Name:  "transcription-model",
			Usage: "Transcription model name",
			Value: "whisper-1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "generator-model",
			Usage: "Answer generation model name",
			Value: "qwen2.5:3b",
		},
	}
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithHost(c.String("host")),
		ai.WithTranscriptionModel(c.String("transcription-model")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
	}
	if th := c.String("transcription-host"); th != "" {
		opts = append(opts, ai.WithTranscriptionHost(th))
	}
	return ai.NewConfig(opts...)
}

func openService(c *cli.Context) (*mediamind.Service, error) {
	cfg := aiConfigFromFlags(c)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	svc, err := mediamind.NewService(c.String("db"), mediamind.WithAIConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}

func serveCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	fmt.Fprintln(os.Stderr, "stage workers running, press Ctrl-C to stop")
	<-ctx.Done()
	return nil
}

func submitCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one media file argument")
	}
	sourceRef := c.Args().First()

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	jobID, err := svc.SubmitJob(ctx, sourceRef)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	fmt.Println(jobID)

	if !c.Bool("wait") {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer cancel()
	if err := svc.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	for {
		job, err := svc.GetStatus(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			printJob(job)
			if job.Status == core.JobFailed {
				return fmt.Errorf("job failed")
			}
			return nil
		}
		select {
		case <-runCtx.Done():
			return fmt.Errorf("timed out waiting for job %s (last status %s)", jobID, job.Status)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one job-id argument")
	}

	svc, err := mediamind.NewService(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	job, err := svc.GetStatus(context.Background(), c.Args().First())
	if err != nil {
		return err
	}
	printJob(job)
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected <job-id> <question> arguments")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ans, err := svc.Ask(context.Background(), c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	fmt.Println(ans.Text)
	if ans.Cached {
		fmt.Fprintln(os.Stderr, "(served from answer cache)")
	}
	return nil
}

func retryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one job-id argument")
	}

	svc, err := mediamind.NewService(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	jobID := c.Args().First()
	if err := svc.RetryJob(context.Background(), jobID); err != nil {
		return err
	}
	fmt.Printf("job %s re-queued; run serve to process it\n", jobID)
	return nil
}

func deadLettersCommand(c *cli.Context) error {
	svc, err := mediamind.NewService(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	letters, err := svc.DeadLetters(context.Background())
	if err != nil {
		return err
	}
	if len(letters) == 0 {
		fmt.Println("no dead letters")
		return nil
	}
	for _, dl := range letters {
		fmt.Printf("%s  job=%s stage=%s kind=%s attempts=%d error=%s\n",
			dl.At.Format(time.RFC3339), dl.JobID, dl.Stage, dl.ErrorKind, dl.Attempts, dl.LastError)
	}
	return nil
}

func printJob(job *core.Job) {
	fmt.Printf("job:      %s\n", job.ID)
	fmt.Printf("source:   %s\n", job.SourceRef)
	if job.Size > 0 {
		fmt.Printf("size:     %d bytes\n", job.Size)
	}
	fmt.Printf("status:   %s\n", job.Status)
	fmt.Printf("segments: %d\n", job.SegmentCount)
	fmt.Printf("created:  %s\n", job.CreatedAt.Format(time.RFC3339))
	for _, se := range job.StageErrors {
		fmt.Printf("error:    stage=%s kind=%s attempts=%d %s\n", se.Stage, se.Kind, se.Attempts, se.Message)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
