package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nulzo/model-bridge/internal/cli"
	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/internal/mailbox"
	"github.com/nulzo/model-bridge/pkg/api"
	"github.com/spf13/cobra"
)

type submitOptions struct {
	service     string
	model       string
	dir         string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	poll        time.Duration
}

func newSubmitCommand() *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit [flags] PROMPT",
		Short: "Drop a request into the mailbox and wait for its response",
		Long: `submit writes a request descriptor into the mailbox directory and polls for the
response descriptor. A running "bridge serve" with the watcher enabled picks it up;
otherwise trigger a cycle with POST /api/process-file-request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := opts.request(args[0], cmd.Flags().Changed("max-tokens"), cmd.Flags().Changed("temperature"))
			return submit(cmd.Context(), opts, req)
		},
	}

	cmd.Flags().StringVarP(&opts.service, "service", "s", string(api.Claude), "provider id")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model, defaults to the provider's default")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "mailbox directory, defaults to mailbox.dir")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().DurationVarP(&opts.timeout, "wait", "w", 2*time.Minute, "how long to wait for the response")
	cmd.Flags().DurationVar(&opts.poll, "poll", 100*time.Millisecond, "response poll interval")

	return cmd
}

func (o submitOptions) request(prompt string, withTokens, withTemp bool) *api.GenerationRequest {
	req := &api.GenerationRequest{
		Service: api.ProviderID(o.service),
		Prompt:  prompt,
		Model:   o.model,
	}
	if withTokens || withTemp {
		req.Settings = &api.Settings{}
		if withTokens {
			n := o.maxTokens
			req.Settings.MaxTokens = &n
		}
		if withTemp {
			t := o.temperature
			req.Settings.Temperature = &t
		}
	}
	return req
}

func submit(ctx context.Context, opts submitOptions, req *api.GenerationRequest) error {
	dir := opts.dir
	if dir == "" {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dir = cfg.Mailbox.Dir
	}

	client := mailbox.NewClient(dir, opts.poll)
	if err := client.Submit(req); err != nil {
		return err
	}
	fmt.Printf("%s Request written to %s\n", cli.Arrow(), dir)

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	resp, err := client.AwaitResponse(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("no response after %s; is the watcher running?", opts.timeout)
	}
	if err != nil {
		return err
	}

	cli.PrettyPrint(resp)
	if !resp.Success {
		return fmt.Errorf("%s request failed: %s", cli.CrossMark(), resp.Error)
	}
	return nil
}
