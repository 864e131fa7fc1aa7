package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand(opts *Options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Example: `  goknow ask "Phép cộng là gì?"
  goknow ask --json what is a goroutine`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, _, closeFn, err := opts.open(true)
			if err != nil {
				return err
			}
			defer closeFn()

			ans, err := engine.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(opts.Out, ans)
			}
			renderAnswer(opts.Out, ans, opts.Verbose)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}

func newChatCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question and answer session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, _, closeFn, err := opts.open(true)
			if err != nil {
				return err
			}
			defer closeFn()
			return NewREPL(engine, opts.In, opts.Out, opts.Verbose).Run(cmd.Context())
		},
	}
}
