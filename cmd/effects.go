package cmd

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/blacktop/fluxstudio/internal/api"
	"github.com/blacktop/fluxstudio/internal/download"
	"github.com/blacktop/fluxstudio/internal/studio"
)

// requestTimeout bounds the short calls made by the TUI; generation
// itself is bounded by the client's timeout.
const requestTimeout = 30 * time.Second

type focusSearchMsg struct{ group string }

type imageMsg struct {
	ref  string
	data []byte
	err  error
}

// runEffects turns the side effects requested by the studio into
// commands. Every command reports back with a studio.Action.
func (m model) runEffects(effects []studio.Effect) tea.Cmd {
	var cmds []tea.Cmd
	for _, e := range effects {
		switch e := e.(type) {
		case studio.FocusSearch:
			group := e.Group
			cmds = append(cmds, tea.Tick(e.After, func(time.Time) tea.Msg {
				return focusSearchMsg{group: group}
			}))
		case studio.SendGenerate:
			cmds = append(cmds, generateImages(m.client, e.Request), m.spinner.Tick)
		case studio.SendFilter:
			cmds = append(cmds, applyFilter(m.client, e.Index, e.SessionID, e.Request))
		case studio.SaveImage:
			cmds = append(cmds, saveImage(m.saver, e))
		}
	}
	return tea.Batch(cmds...)
}

func generateImages(client *api.Client, req api.GenerationRequest) tea.Cmd {
	return func() tea.Msg {
		logger.Debug("Generating images", "model", req.Model, "style", req.Style, "count", req.NumImages)
		resp, err := client.Generate(context.Background(), req)
		if err != nil {
			logger.Error("Error generating images", "err", err)
			return studio.GenerateFailed{Err: err}
		}
		return studio.Generated{Prompt: req.Prompt, Response: resp}
	}
}

func applyFilter(client *api.Client, index int, sessionID string, req api.FilterRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		ref, err := client.ApplyFilter(ctx, req)
		if err != nil {
			return studio.FilterFailed{Err: err}
		}
		return studio.FilterApplied{Index: index, SessionID: sessionID, Ref: ref}
	}
}

func saveImage(saver *download.Saver, e studio.SaveImage) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		path, err := saver.Save(ctx, imageOf(e.Card, e.SessionID, e.Prompt))
		if err != nil {
			return studio.DownloadFailed{Err: err}
		}
		return studio.Downloaded{Path: path}
	}
}

func imageOf(c studio.Card, sessionID, prompt string) download.Image {
	img := download.Image{
		Ref:      c.Display(),
		Index:    c.Index,
		Filtered: c.Filtered != "",
		Prompt:   prompt,
	}
	if !c.Placeholder {
		img.SessionID = sessionID
	}
	return img
}

func fetchBalance(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		balance, err := client.TokenBalance(ctx)
		if err != nil {
			// the balance is cosmetic; the studio works without it
			logger.Warn("Could not load token balance", "err", err)
			return nil
		}
		return studio.TokenBalanceLoaded{Balance: balance}
	}
}

func fetchImage(client *api.Client, ref string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		data, err := client.Fetch(ctx, ref)
		return imageMsg{ref: ref, data: data, err: err}
	}
}
