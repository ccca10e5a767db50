package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/seabridge/internal/document"
	"github.com/MimeLyc/seabridge/internal/jobs"
	"github.com/MimeLyc/seabridge/internal/provider"
	"github.com/MimeLyc/seabridge/internal/service"
	"github.com/MimeLyc/seabridge/pkg/file"
)

// withService builds the service for a one-shot command and closes it when fn
// returns.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a.Service)
}

// readInput returns the joined args, or stdin when there are none.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no input text")
	}
	return text, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newTranslateCmd() *cobra.Command {
	var to, from string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate a short text (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.TranslateText(ctx, provider.Request{
					Content:        text,
					TargetLanguage: to,
					SourceLanguage: from,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), res)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "", "Target language (default DEFAULT_TARGET_LANG)")
	cmd.Flags().StringVarP(&from, "from", "f", "", "Source language (detected when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func newDocumentCmd() *cobra.Command {
	var (
		path, out string
		to, from  string
		chunkSize int
		save      bool
	)

	cmd := &cobra.Command{
		Use:   "document",
		Short: "Translate a long text file chunk by chunk",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.TranslateDocument(ctx, document.Request{
					Text:           string(data),
					TargetLanguage: to,
					SourceLanguage: from,
					MaxChunkSize:   chunkSize,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d chunks translated, %d via fallback\n", res.Chunks, res.FallbackChunks)
				if out == "" && save {
					out = file.WithLanguage(path, svc.TargetLanguage(to))
				}
				if out == "" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
					return err
				}
				if err := os.WriteFile(out, []byte(res.Text), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Text file to translate")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the translation here instead of stdout")
	cmd.Flags().StringVarP(&to, "to", "t", "", "Target language (default DEFAULT_TARGET_LANG)")
	cmd.Flags().StringVarP(&from, "from", "f", "", "Source language (detected when empty)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Maximum characters per chunk (default DOC_MAX_CHUNK_SIZE)")
	cmd.Flags().BoolVar(&save, "save", false, "Write next to the input as <name>.<lang>.<ext> when --out is not set")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSmsCmd() *cobra.Command {
	var to, from string
	var maxLength int

	cmd := &cobra.Command{
		Use:   "sms [text]",
		Short: "Split text into SMS segments, translating first when --to is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if to != "" {
					res, err := svc.TranslateText(ctx, provider.Request{
						Content:        text,
						TargetLanguage: to,
						SourceLanguage: from,
					})
					if err != nil {
						return err
					}
					text = res.Text
				}
				segments, err := svc.ChunkForSms(text, maxLength)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), segments)
			})
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "", "Translate into this language before splitting")
	cmd.Flags().StringVarP(&from, "from", "f", "", "Source language (detected when empty)")
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "Maximum characters per segment (default SMS_MAX_LENGTH)")
	return cmd
}

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Start, inspect and download batch document jobs",
	}
	cmd.AddCommand(newJobStartCmd(), newJobStatusCmd(), newJobDownloadCmd())
	return cmd
}

func newJobStartCmd() *cobra.Command {
	var path, key, to, from string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Submit a document for batch translation",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if key == "" {
				key = filepath.Base(path)
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.StartDocumentJob(ctx, jobs.StartRequest{
					MessageKey:     key,
					TargetLanguage: to,
					SourceLanguage: from,
					Content:        data,
					FileName:       filepath.Base(path),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Document to translate")
	cmd.Flags().StringVar(&key, "key", "", "Message key used for deduplication (default file name)")
	cmd.Flags().StringVarP(&to, "to", "t", "", "Target language (default DEFAULT_TARGET_LANG)")
	cmd.Flags().StringVarP(&from, "from", "f", "", "Source language")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newJobStatusCmd() *cobra.Command {
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Poll the batch provider once and print the job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				job, err := waitForJob(ctx, svc, args[0], wait, interval)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), job)
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Keep polling until the job is terminal")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Delay between polls with --wait")
	return cmd
}

type jobPoller interface {
	PollJobStatus(ctx context.Context, jobID string) (*jobs.DocumentJob, error)
}

func waitForJob(ctx context.Context, svc jobPoller, jobID string, wait bool, interval time.Duration) (*jobs.DocumentJob, error) {
	for {
		job, err := svc.PollJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if !wait || job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func newJobDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <job-id>",
		Short: "Print the download URL of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				url, err := svc.DownloadURL(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), url)
				return err
			})
		},
	}
}
