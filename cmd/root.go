/*
Copyright © 2024-2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/blacktop/fluxstudio/internal/api"
	"github.com/blacktop/fluxstudio/internal/config"
	"github.com/blacktop/fluxstudio/internal/download"
	"github.com/blacktop/fluxstudio/internal/studio"
)

var (
	// flags
	logger         *log.Logger
	verbose        bool
	envFile        string
	logFile        string
	endpoint       string
	outputFolder   string
	outputFormat   string
	outputQuality  int
	prompt         string
	negativePrompt string
	aspectRatio    string
	imageCount     string
	fluxModel      string
	formatEnhance  string
	style          string
	steps          int
	guidanceScale  float64
	seed           int
	privateMode    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "fluxstudio",
	Short:         "Image generation studio TUI",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStudio()
		if err != nil {
			return err
		}
		client, saver, err := newClients()
		if err != nil {
			return err
		}
		// the TUI owns the terminal, so logs go to a file or nowhere
		var out io.Writer = io.Discard
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("error opening log file: %w", err)
			}
			defer f.Close()
			out = f
		}
		logger.SetOutput(out)
		defer logger.SetOutput(os.Stderr)

		p := tea.NewProgram(newModel(s, client, saver), tea.WithAltScreen(), tea.WithMouseCellMotion())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running program: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("fluxstudio failed", "err", err)
		os.Exit(1)
	}
}

// newStudio builds the screen state from the command line flags.
func newStudio() (*studio.Studio, error) {
	s := studio.New()

	if aspectRatio != "" {
		if !slices.Contains(validAspectRatios(), aspectRatio) {
			return nil, fmt.Errorf("invalid aspect ratio %q (must be one of: %s)", aspectRatio, strings.Join(validAspectRatios(), ", "))
		}
		s.Dispatch(studio.SelectAspect{Ratio: aspectRatio})
	}
	if imageCount != "" {
		if !slices.Contains(studio.CountPresets, imageCount) {
			return nil, fmt.Errorf("invalid image count %q (must be one of: %s)", imageCount, strings.Join(studio.CountPresets, ", "))
		}
		s.Dispatch(studio.SelectCount{Label: imageCount})
	}
	for group, value := range map[string]string{
		studio.GroupModel:  fluxModel,
		studio.GroupFormat: formatEnhance,
		studio.GroupStyle:  style,
	} {
		if value == "" {
			continue
		}
		if err := s.Dropdowns.Select(group, value); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", strings.ToLower(group), err)
		}
	}

	s.Dispatch(studio.SetPrompt{Text: prompt})
	s.Dispatch(studio.SetNegativePrompt{Text: negativePrompt})
	s.Dispatch(studio.SetPrivateMode{On: privateMode})
	s.Dispatch(studio.SetSteps{Steps: steps})
	s.Dispatch(studio.SetGuidanceScale{Scale: guidanceScale})
	s.Dispatch(studio.SetSeed{Raw: fmt.Sprint(seed)})
	return s, nil
}

// newClients wires the service client and the image saver from the
// environment and the flags.
func newClients() (*api.Client, *download.Saver, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if outputFolder != "" {
		cfg.OutputFolder = outputFolder
	}
	logger.Debug("Configuration", "endpoint", cfg.Endpoint, "output", cfg.OutputFolder, "timeout", cfg.Timeout)

	client, err := api.New(cfg.Endpoint, api.WithTimeout(cfg.Timeout), api.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	saver, err := download.NewSaver(client, cfg.OutputFolder, outputFormat, outputQuality, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, saver, nil
}

func validAspectRatios() []string {
	var ratios []string
	for _, p := range studio.AspectPresets {
		ratios = append(ratios, p.Ratio)
	}
	return ratios
}

func init() {
	// Override the default error level style.
	styles := log.DefaultStyles()
	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR!!").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("204")).
		Foreground(lipgloss.Color("0"))
	// Add a custom style for key `err`
	styles.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	styles.Values["err"] = lipgloss.NewStyle().Bold(true)
	logger = log.New(os.Stderr)
	logger.SetStyles(styles)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "V", false, "Verbose output")
	pf.StringVar(&envFile, "env-file", ".env", "Environment file to load")
	pf.StringVarP(&endpoint, "endpoint", "e", "", "Generation service URL (overrides FLUXSTUDIO_ENDPOINT env_var)")
	pf.StringVarP(&outputFolder, "output", "o", "", "Output folder (overrides FLUXSTUDIO_OUTPUT env_var)")
	pf.StringVarP(&outputFormat, "format", "f", "png", fmt.Sprintf("Download image format (%s)", strings.Join(download.Formats, ", ")))
	pf.IntVarP(&outputQuality, "quality", "q", download.DefaultQuality, "Download quality for jpeg images (1-100)")
	pf.StringVarP(&prompt, "prompt", "p", "", "Prompt for image generation")
	pf.StringVarP(&negativePrompt, "negative", "n", "", "Negative prompt")
	pf.StringVarP(&aspectRatio, "aspect", "a", "", fmt.Sprintf("Aspect ratio of the images (%s)", strings.Join(validAspectRatios(), ", ")))
	pf.StringVarP(&imageCount, "count", "c", "", "Number of images to generate (1-4)")
	pf.StringVarP(&fluxModel, "model", "m", "", "Model to use (default \"Flux Dev\")")
	pf.StringVar(&formatEnhance, "enhance", "", "Format enhancement (default \"Auto\")")
	pf.StringVarP(&style, "style", "s", "", "Style preset (default \"Dynamic\")")
	pf.IntVar(&steps, "steps", studio.DefaultSteps, "Number of diffusion steps")
	pf.Float64Var(&guidanceScale, "guidance", studio.DefaultGuidanceScale, "Guidance scale")
	pf.IntVar(&seed, "seed", studio.DefaultSeed, "Random seed (-1 for random)")
	pf.BoolVar(&privateMode, "private", false, "Private mode")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file while the TUI is running")
	rootCmd.MarkPersistentFlagDirname("output")
	rootCmd.MarkFlagFilename("log-file")
}
