// Package studio holds the state of the generation screen and the single
// function that updates it.
package studio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blacktop/fluxstudio/internal/api"
	"github.com/blacktop/fluxstudio/internal/dropdown"
	"github.com/blacktop/fluxstudio/internal/placeholder"
)

var ErrEmptyPrompt = errors.New("prompt is empty")

// Messages for failures that carry no text of their own.
const (
	msgEmptyPrompt = "Please enter a prompt first."
	msgTransport   = "An error occurred while generating images."
	msgInFlight    = "A generation is already in progress."
	msgNoSelected  = "Select a generated image first."
)

const samplePrompt = "A dimly lit, cozy living room with warm ambient light, a floor lamp glowing softly in the corner."

type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeValidation
	NoticeServer
	NoticeTransport
)

// Notice is a dismissible banner.
type Notice struct {
	Kind    NoticeKind
	Message string
}

func (n Notice) IsError() bool { return n.Kind != NoticeInfo }

// Card is one entry of the image grid.
type Card struct {
	Index       int
	Ref         string
	Filtered    string // reference of the filtered copy, if any
	Placeholder bool
	Model       string
	Style       string
	Resolution  string
}

// Display is the reference the card currently shows.
func (c Card) Display() string {
	if c.Filtered != "" {
		return c.Filtered
	}
	return c.Ref
}

// Studio is the whole screen state.
type Studio struct {
	Dropdowns dropdown.Set

	Prompt         string
	NegativePrompt string
	Aspect         string // active aspect preset ratio, empty when none
	Count          string // active count preset label, empty when none
	PrivateMode    bool
	Steps          int
	GuidanceScale  float64
	Seed           int

	Caption        string // prompt the grid was generated from
	Cards          []Card
	SelectedCard   int
	SessionID      string
	FilterApplied  bool
	TokenBalance   *float64
	Loading        bool
	ResultsVisible bool
	Notice         *Notice

	lastVisible bool
}

// New returns a studio with default menus and a placeholder grid.
func New() *Studio {
	s := &Studio{
		Steps:          DefaultSteps,
		GuidanceScale:  DefaultGuidanceScale,
		Seed:           DefaultSeed,
		SelectedCard:   -1,
		ResultsVisible: true,
	}
	s.Init()
	s.Dispatch(ShowPlaceholders{Count: 4})
	return s
}

// Init (re)registers the dropdown menus. Calling it again replaces the
// menus instead of adding new ones.
func (s *Studio) Init() {
	for _, g := range DefaultDropdowns() {
		s.Dropdowns.Register(g)
	}
}

// Dispatch applies a to the state and returns the side effects to run.
func (s *Studio) Dispatch(a Action) []Effect {
	switch a := a.(type) {
	case ToggleDropdown:
		open, err := s.Dropdowns.Toggle(a.Group)
		if err != nil {
			return nil
		}
		if open {
			return []Effect{FocusSearch{Group: a.Group, After: dropdown.FocusDelay}}
		}
	case SearchDropdown:
		if g := s.Dropdowns.Get(a.Group); g != nil && g.IsOpen() {
			g.SetSearch(a.Term)
		}
	case SelectOption:
		_ = s.Dropdowns.Select(a.Group, a.Value)
	case CloseDropdowns:
		s.Dropdowns.CloseAll()

	case SetPrompt:
		s.Prompt = a.Text
	case SetNegativePrompt:
		s.NegativePrompt = a.Text
	case SelectAspect:
		if _, ok := aspectPreset(a.Ratio); ok {
			s.Aspect = a.Ratio
		}
	case SelectCount:
		if countPreset(a.Label) {
			s.Count = a.Label
		}
	case SetPrivateMode:
		s.PrivateMode = a.On
	case SetSteps:
		s.Steps = min(max(a.Steps, MinSteps), MaxSteps)
	case SetGuidanceScale:
		s.GuidanceScale = min(max(a.Scale, MinGuidance), MaxGuidance)
	case SetSeed:
		s.Seed = parseSeed(a.Raw)

	case Submit:
		return s.submit()
	case Regenerate:
		if s.Loading {
			s.notify(NoticeInfo, msgInFlight)
			return nil
		}
		if s.Caption != "" && !s.hasPlaceholders() {
			s.Prompt = s.Caption
		}
		return s.submit()
	case Generated:
		s.generated(a.Prompt, a.Response)
	case GenerateFailed:
		s.Loading = false
		s.ResultsVisible = s.lastVisible
		if se, ok := api.IsServerError(a.Err); ok {
			s.notify(NoticeServer, "Error generating images: "+se.Message)
		} else {
			s.notify(NoticeTransport, msgTransport)
		}

	case ShowPlaceholders:
		s.showPlaceholders(a.Count)
	case SelectCard:
		if a.Index >= 0 && a.Index < len(s.Cards) {
			s.SelectedCard = a.Index
			s.FilterApplied = false
		}

	case ApplyFilter:
		card, ok := s.Selected()
		if !ok || card.Placeholder || s.SessionID == "" {
			s.notify(NoticeValidation, msgNoSelected)
			return nil
		}
		return []Effect{SendFilter{
			Index:     card.Index,
			SessionID: s.SessionID,
			Request: api.FilterRequest{
				SessionID:  s.SessionID,
				ImageID:    card.Index,
				FilterType: a.Filter,
				Intensity:  min(max(a.Intensity, 0), 1),
			},
		}}
	case FilterApplied:
		// replies for a grid that has since been replaced are dropped
		if a.SessionID != s.SessionID {
			return nil
		}
		if a.Index >= 0 && a.Index < len(s.Cards) {
			s.Cards[a.Index].Filtered = a.Ref
			s.FilterApplied = true
		}
	case FilterFailed:
		s.notifyErr("Error applying filter", a.Err)

	case Download:
		if a.Index < 0 || a.Index >= len(s.Cards) {
			return nil
		}
		return []Effect{SaveImage{Card: s.Cards[a.Index], SessionID: s.SessionID, Prompt: s.Caption}}
	case Downloaded:
		s.notify(NoticeInfo, "Image saved: "+a.Path)
	case DownloadFailed:
		s.notifyErr("Error downloading image", a.Err)

	case TokenBalanceLoaded:
		b := a.Balance
		s.TokenBalance = &b
	case DismissNotice:
		s.Notice = nil
	}
	return nil
}

// Request assembles the generation request from the current state.
func (s *Studio) Request() (api.GenerationRequest, error) {
	prompt := strings.TrimSpace(s.Prompt)
	if prompt == "" {
		return api.GenerationRequest{}, ErrEmptyPrompt
	}
	width, height := s.Dimensions()
	return api.GenerationRequest{
		Prompt:         prompt,
		NumImages:      s.NumImages(),
		Width:          width,
		Height:         height,
		Steps:          s.Steps,
		GuidanceScale:  s.GuidanceScale,
		Seed:           s.Seed,
		Model:          s.Dropdowns.ValueOr(GroupModel, DefaultModel),
		FormatEnhance:  s.Dropdowns.ValueOr(GroupFormat, DefaultFormatEnhance),
		Style:          s.Dropdowns.ValueOr(GroupStyle, DefaultStyle),
		PrivateMode:    s.PrivateMode,
		NegativePrompt: strings.TrimSpace(s.NegativePrompt),
	}, nil
}

// Dimensions resolves the active aspect preset.
func (s *Studio) Dimensions() (int, int) {
	if p, ok := aspectPreset(s.Aspect); ok {
		return p.Width, p.Height
	}
	return DefaultWidth, DefaultHeight
}

// Resolution is the label shown on result cards.
func (s *Studio) Resolution() string {
	w, h := s.Dimensions()
	return AspectPreset{Width: w, Height: h}.Pixels()
}

func (s *Studio) NumImages() int { return imageCount(s.Count) }

// TokenCost is the price preview shown on the generate button.
func (s *Studio) TokenCost() string {
	return fmt.Sprintf("$%.2f", float64(s.NumImages())*tokenCostPerImage)
}

// Balance formats the token balance, or returns an empty string when unknown.
func (s *Studio) Balance() string {
	if s.TokenBalance == nil {
		return ""
	}
	return strconv.FormatFloat(*s.TokenBalance, 'f', 1, 64)
}

// Selected returns the selected card.
func (s *Studio) Selected() (Card, bool) {
	if s.SelectedCard < 0 || s.SelectedCard >= len(s.Cards) {
		return Card{}, false
	}
	return s.Cards[s.SelectedCard], true
}

func (s *Studio) submit() []Effect {
	if s.Loading {
		s.notify(NoticeInfo, msgInFlight)
		return nil
	}
	req, err := s.Request()
	if err != nil {
		s.notify(NoticeValidation, msgEmptyPrompt)
		return nil
	}
	s.Dropdowns.CloseAll()
	s.Notice = nil
	s.Loading = true
	s.lastVisible = s.ResultsVisible
	s.ResultsVisible = false
	return []Effect{SendGenerate{Request: req}}
}

func (s *Studio) generated(prompt string, resp *api.GenerateResponse) {
	model := s.Dropdowns.ValueOr(GroupModel, DefaultModel)
	style := s.Dropdowns.ValueOr(GroupStyle, DefaultStyle)
	resolution := s.Resolution()

	cards := make([]Card, 0, len(resp.Images))
	for i, ref := range resp.Images {
		cards = append(cards, Card{
			Index:      i,
			Ref:        ref,
			Model:      model,
			Style:      style,
			Resolution: resolution,
		})
	}
	s.Cards = cards
	s.Caption = prompt
	s.SessionID = resp.SessionID
	s.SelectedCard = -1
	s.FilterApplied = false
	if resp.RemainingTokens != nil {
		b := *resp.RemainingTokens
		s.TokenBalance = &b
	}
	s.Loading = false
	s.ResultsVisible = true
}

func (s *Studio) showPlaceholders(n int) {
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		ref, err := placeholder.DataURL(i)
		if err != nil {
			continue
		}
		cards = append(cards, Card{
			Index:       i,
			Ref:         ref,
			Placeholder: true,
			Model:       DefaultModel,
			Style:       DefaultStyle,
			Resolution:  "1024x1024px",
		})
	}
	s.Cards = cards
	s.Caption = samplePrompt
	s.SelectedCard = -1
	s.FilterApplied = false
}

func (s *Studio) hasPlaceholders() bool {
	return len(s.Cards) > 0 && s.Cards[0].Placeholder
}

func (s *Studio) notify(kind NoticeKind, msg string) {
	s.Notice = &Notice{Kind: kind, Message: msg}
}

func (s *Studio) notifyErr(prefix string, err error) {
	if se, ok := api.IsServerError(err); ok {
		s.notify(NoticeServer, prefix+": "+se.Message)
		return
	}
	s.notify(NoticeTransport, fmt.Sprintf("%s: %v", prefix, err))
}

func parseSeed(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return DefaultSeed
	}
	return n
}
