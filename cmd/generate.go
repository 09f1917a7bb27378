package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blacktop/fluxstudio/internal/studio"
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen"},
	Short:   "Generate images without the TUI",
	Example: `  fluxstudio generate -p "a lighthouse at dusk" -a 16:9 -c 2 -s Cinematic -o ./out`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStudio()
		if err != nil {
			return err
		}
		client, saver, err := newClients()
		if err != nil {
			return err
		}

		var req *studio.SendGenerate
		for _, e := range s.Dispatch(studio.Submit{}) {
			if sg, ok := e.(studio.SendGenerate); ok {
				req = &sg
			}
		}
		if req == nil {
			if n := s.Notice; n != nil {
				return errors.New(n.Message)
			}
			return fmt.Errorf("nothing to generate")
		}

		w, h := s.Dimensions()
		logger.Info("Generating images", "model", req.Request.Model, "style", req.Request.Style, "size", fmt.Sprintf("%dx%d", w, h), "count", req.Request.NumImages)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		resp, err := client.Generate(ctx, req.Request)
		if err != nil {
			return fmt.Errorf("error generating images: %w", err)
		}
		s.Dispatch(studio.Generated{Prompt: req.Request.Prompt, Response: resp})
		if bal := s.Balance(); bal != "" {
			logger.Info("Tokens remaining", "balance", bal)
		}

		for _, card := range s.Cards {
			if _, err := saver.Save(ctx, imageOf(card, s.SessionID, s.Caption)); err != nil {
				return fmt.Errorf("error saving image %d: %w", card.Index+1, err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
