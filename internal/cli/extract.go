package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"command-pipeline/internal/common/validation"
	"command-pipeline/internal/models"
	extractcommand "command-pipeline/internal/workers/pipeline/extract-command"
	routecommand "command-pipeline/internal/workers/pipeline/route-command"
)

type extractOptions struct {
	Text        string
	Channel     string
	RequestFile string
}

type extractResult struct {
	Command models.Command `json:"command"`
	Brain   models.BrainID `json:"brain"`
	Routed  bool           `json:"routed"`
}

// NewExtractCommand runs extraction and routing offline. No side effects.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the structured command extracted from an utterance",
		Long: `Extract runs the deterministic extractor and router over one request
and prints the resulting command as JSON. Nothing is written to the ledger,
the ERP or the audit log.

Pass either --text or --request with a CommandRequest JSON file ("-" reads stdin).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Text, "text", "t", "", "utterance to extract")
	cmd.Flags().StringVar(&opts.Channel, "channel", string(models.ChannelAPI), "channel for --text")
	cmd.Flags().StringVarP(&opts.RequestFile, "request", "r", "", "CommandRequest JSON file")
	cmd.MarkFlagsMutuallyExclusive("text", "request")

	return cmd
}

func runExtract(cmd *cobra.Command, rootOpts *RootOptions, opts *extractOptions) error {
	req, err := readExtractRequest(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}

	pol, err := loadPolicy(rootOpts.PolicyPath)
	if err != nil {
		return err
	}

	router, err := routecommand.NewRouter(pol)
	if err != nil {
		return err
	}
	command := extractcommand.NewExtractor(pol).Extract(req)
	brain, routed := router.Route(command.Intent)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(extractResult{Command: command, Brain: brain, Routed: routed})
}

func readExtractRequest(stdin io.Reader, opts *extractOptions) (models.CommandRequest, error) {
	if opts.RequestFile == "" {
		if opts.Text == "" {
			return models.CommandRequest{}, fmt.Errorf("one of --text or --request is required")
		}
		channel := models.Channel(opts.Channel)
		if !channel.Valid() {
			return models.CommandRequest{}, fmt.Errorf("invalid channel %q", opts.Channel)
		}
		return models.CommandRequest{RequestID: "cli", RawText: opts.Text, Channel: channel}, nil
	}

	var (
		raw []byte
		err error
	)
	if opts.RequestFile == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(opts.RequestFile)
	}
	if err != nil {
		return models.CommandRequest{}, fmt.Errorf("read request: %w", err)
	}

	validator, err := validation.NewCommandRequestValidator()
	if err != nil {
		return models.CommandRequest{}, err
	}
	return validator.DecodeCommandRequest(raw)
}
