package studio

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/fluxstudio/internal/api"
	"github.com/blacktop/fluxstudio/internal/dropdown"
)

func ptr[T any](v T) *T { return &v }

func TestNewStudio(t *testing.T) {
	s := New()

	require.Len(t, s.Dropdowns.Groups(), 3)
	for _, g := range s.Dropdowns.Groups() {
		assert.False(t, g.IsOpen(), g.Name)
		assert.Equal(t, g.Options()[0].Value, g.Value(), g.Name)
	}
	require.Len(t, s.Cards, 4)
	for i, c := range s.Cards {
		assert.True(t, c.Placeholder)
		assert.Equal(t, i, c.Index)
		assert.Contains(t, c.Ref, "data:image/png;base64,")
	}
	assert.Equal(t, -1, s.SelectedCard)
	assert.False(t, s.Loading)
}

func TestInitIsIdempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.Dropdowns.Select(GroupStyle, "Film"))
	s.Init()
	s.Init()

	assert.Len(t, s.Dropdowns.Groups(), 3)
	// re-initializing resets to the first option
	assert.Equal(t, "Dynamic", s.Dropdowns.Get(GroupStyle).Value())
}

func TestDropdownActions(t *testing.T) {
	s := New()

	effects := s.Dispatch(ToggleDropdown{Group: GroupModel})
	require.Len(t, effects, 1)
	assert.Equal(t, FocusSearch{Group: GroupModel, After: dropdown.FocusDelay}, effects[0])

	// opening another group closes the first
	s.Dispatch(ToggleDropdown{Group: GroupStyle})
	open := 0
	for _, g := range s.Dropdowns.Groups() {
		if g.IsOpen() {
			open++
		}
	}
	assert.Equal(t, 1, open)
	assert.Equal(t, GroupStyle, s.Dropdowns.Active().Name)

	s.Dispatch(SearchDropdown{Group: GroupStyle, Term: "CINE"})
	visible := s.Dropdowns.Get(GroupStyle).Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "Cinematic", visible[0].Value)

	s.Dispatch(SearchDropdown{Group: GroupStyle, Term: "watercolour"})
	assert.Equal(t, `No results for "watercolour"`, s.Dropdowns.Get(GroupStyle).NoResults())

	// searching does not close the menu
	assert.True(t, s.Dropdowns.Get(GroupStyle).IsOpen())

	s.Dispatch(SelectOption{Group: GroupStyle, Value: "Cinematic"})
	assert.Equal(t, "Cinematic", s.Dropdowns.Get(GroupStyle).Value())
	assert.Nil(t, s.Dropdowns.Active(), "selecting closes the menu")

	s.Dispatch(ToggleDropdown{Group: GroupFormat})
	s.Dispatch(CloseDropdowns{})
	assert.Nil(t, s.Dropdowns.Active())

	assert.Nil(t, s.Dispatch(ToggleDropdown{Group: "unknown"}))
}

func TestSearchClosedGroupIsIgnored(t *testing.T) {
	s := New()
	s.Dispatch(SearchDropdown{Group: GroupModel, Term: "kino"})
	assert.Empty(t, s.Dropdowns.Get(GroupModel).Search())
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		ratio         string
		width, height int
	}{
		{"1:1", 1024, 1024},
		{"3:4", 768, 1024},
		{"16:9", 1024, 576},
		{"", 1024, 576},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("ratio %q", tt.ratio), func(t *testing.T) {
			s := New()
			s.Dispatch(SetPrompt{Text: "a cat"})
			s.Dispatch(SelectAspect{Ratio: tt.ratio})
			req, err := s.Request()
			require.NoError(t, err)
			assert.Equal(t, tt.width, req.Width)
			assert.Equal(t, tt.height, req.Height)
		})
	}
}

func TestUnknownPresetsAreIgnored(t *testing.T) {
	s := New()
	s.Dispatch(SelectAspect{Ratio: "16:9"})
	s.Dispatch(SelectAspect{Ratio: "21:9"})
	assert.Equal(t, "16:9", s.Aspect)

	s.Dispatch(SelectCount{Label: "3"})
	s.Dispatch(SelectCount{Label: "12"})
	assert.Equal(t, "3", s.Count)
}

func TestNumImages(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"", 1},
		{"1", 1},
		{"4", 4},
		{MoreCount, 1},
	}
	for _, tt := range tests {
		s := New()
		s.Dispatch(SelectCount{Label: tt.label})
		assert.Equal(t, tt.want, s.NumImages(), "label %q", tt.label)
	}
}

func TestTokenCost(t *testing.T) {
	s := New()
	assert.Equal(t, "$0.40", s.TokenCost())
	s.Dispatch(SelectCount{Label: "3"})
	assert.Equal(t, "$1.20", s.TokenCost())
}

func TestRequestDefaults(t *testing.T) {
	s := New()
	s.Dispatch(SetPrompt{Text: "  a lighthouse at dusk  "})

	req, err := s.Request()
	require.NoError(t, err)
	assert.Equal(t, api.GenerationRequest{
		Prompt:        "a lighthouse at dusk",
		NumImages:     1,
		Width:         1024,
		Height:        576,
		Steps:         50,
		GuidanceScale: 7.5,
		Seed:          -1,
		Model:         "Flux Dev",
		FormatEnhance: "Auto",
		Style:         "Dynamic",
	}, req)
}

func TestRequestFromState(t *testing.T) {
	s := New()
	s.Dispatch(SetPrompt{Text: "a fox"})
	s.Dispatch(SetNegativePrompt{Text: " blurry "})
	s.Dispatch(SelectAspect{Ratio: "3:4"})
	s.Dispatch(SelectCount{Label: "2"})
	s.Dispatch(SetPrivateMode{On: true})
	s.Dispatch(SetSteps{Steps: 30})
	s.Dispatch(SetGuidanceScale{Scale: 9})
	s.Dispatch(SetSeed{Raw: "42"})
	s.Dispatch(SelectOption{Group: GroupModel, Value: "Kino XL"})
	s.Dispatch(SelectOption{Group: GroupFormat, Value: "Ultra"})
	s.Dispatch(SelectOption{Group: GroupStyle, Value: "Film"})

	req, err := s.Request()
	require.NoError(t, err)
	assert.Equal(t, api.GenerationRequest{
		Prompt:         "a fox",
		NumImages:      2,
		Width:          768,
		Height:         1024,
		Steps:          30,
		GuidanceScale:  9,
		Seed:           42,
		Model:          "Kino XL",
		FormatEnhance:  "Ultra",
		Style:          "Film",
		PrivateMode:    true,
		NegativePrompt: "blurry",
	}, req)
}

func TestRequestFallsBackWithoutDropdowns(t *testing.T) {
	s := &Studio{Prompt: "x", Steps: DefaultSteps, GuidanceScale: DefaultGuidanceScale, Seed: DefaultSeed}
	req, err := s.Request()
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, DefaultFormatEnhance, req.FormatEnhance)
	assert.Equal(t, DefaultStyle, req.Style)
}

func TestAdvancedBounds(t *testing.T) {
	s := New()
	s.Dispatch(SetSteps{Steps: 1000})
	assert.Equal(t, MaxSteps, s.Steps)
	s.Dispatch(SetSteps{Steps: 0})
	assert.Equal(t, MinSteps, s.Steps)
	s.Dispatch(SetGuidanceScale{Scale: 0})
	assert.Equal(t, MinGuidance, s.GuidanceScale)

	for _, raw := range []string{"", "abc", "-7", "1.5"} {
		s.Dispatch(SetSeed{Raw: "5"})
		s.Dispatch(SetSeed{Raw: raw})
		assert.Equal(t, -1, s.Seed, "seed %q", raw)
	}
}

func TestSubmitEmptyPrompt(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\t\n"} {
		s := New()
		before := s.Cards
		s.Dispatch(SetPrompt{Text: prompt})

		effects := s.Dispatch(Submit{})
		assert.Empty(t, effects, "no request for %q", prompt)
		require.NotNil(t, s.Notice)
		assert.Equal(t, NoticeValidation, s.Notice.Kind)
		assert.False(t, s.Loading)
		assert.Equal(t, before, s.Cards)

		_, err := s.Request()
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	}
}

func submit(t *testing.T, s *Studio, prompt string) api.GenerationRequest {
	t.Helper()
	s.Dispatch(SetPrompt{Text: prompt})
	effects := s.Dispatch(Submit{})
	require.Len(t, effects, 1)
	send, ok := effects[0].(SendGenerate)
	require.True(t, ok)
	return send.Request
}

func TestSubmitShowsLoading(t *testing.T) {
	s := New()
	s.Dispatch(ToggleDropdown{Group: GroupModel})

	req := submit(t, s, "a cat")
	assert.Equal(t, "a cat", req.Prompt)
	assert.True(t, s.Loading)
	assert.False(t, s.ResultsVisible)
	assert.Nil(t, s.Dropdowns.Active())
}

func TestSubmitWhileInFlight(t *testing.T) {
	s := New()
	submit(t, s, "a cat")

	effects := s.Dispatch(Submit{})
	assert.Empty(t, effects)
	require.NotNil(t, s.Notice)
	assert.Equal(t, NoticeInfo, s.Notice.Kind)
	assert.True(t, s.Loading)
}

func TestGenerated(t *testing.T) {
	s := New()
	s.Dispatch(SelectOption{Group: GroupModel, Value: "Phoenix 1.0"})
	s.Dispatch(SelectOption{Group: GroupStyle, Value: "Vibrant"})
	s.Dispatch(SelectAspect{Ratio: "1:1"})
	s.Dispatch(SelectCard{Index: 1})
	submit(t, s, "a cat")

	s.Dispatch(Generated{Prompt: "a cat", Response: &api.GenerateResponse{
		Success:         true,
		Images:          []string{"a.png", "b.png"},
		SessionID:       "s1",
		RemainingTokens: ptr(12.5),
	}})

	require.Len(t, s.Cards, 2)
	assert.Equal(t, "a.png", s.Cards[0].Ref)
	assert.Equal(t, "b.png", s.Cards[1].Ref)
	for i, c := range s.Cards {
		assert.Equal(t, i, c.Index)
		assert.False(t, c.Placeholder)
		assert.Equal(t, "Phoenix 1.0", c.Model)
		assert.Equal(t, "Vibrant", c.Style)
		assert.Equal(t, "1024x1024px", c.Resolution)
	}
	assert.Equal(t, "12.5", s.Balance())
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, "a cat", s.Caption)
	assert.Equal(t, -1, s.SelectedCard)
	assert.False(t, s.Loading)
	assert.True(t, s.ResultsVisible)
}

func TestGeneratedWithoutBalance(t *testing.T) {
	s := New()
	s.Dispatch(TokenBalanceLoaded{Balance: 150})
	submit(t, s, "a cat")
	s.Dispatch(Generated{Prompt: "a cat", Response: &api.GenerateResponse{Success: true, Images: []string{"a.png"}}})
	assert.Equal(t, "150.0", s.Balance())
}

func TestGenerateFailed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind NoticeKind
		msg  string
	}{
		{
			name: "server reported",
			err:  &api.ServerError{Op: "generate", Message: "quota exceeded"},
			kind: NoticeServer,
			msg:  "quota exceeded",
		},
		{
			name: "wrapped server error",
			err:  fmt.Errorf("request: %w", &api.ServerError{Op: "generate", Message: "quota exceeded"}),
			kind: NoticeServer,
			msg:  "quota exceeded",
		},
		{
			name: "transport",
			err:  errors.New("connection refused"),
			kind: NoticeTransport,
			msg:  msgTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			before := append([]Card(nil), s.Cards...)
			submit(t, s, "a cat")

			s.Dispatch(GenerateFailed{Err: tt.err})
			assert.Equal(t, before, s.Cards)
			assert.False(t, s.Loading)
			assert.True(t, s.ResultsVisible)
			require.NotNil(t, s.Notice)
			assert.Equal(t, tt.kind, s.Notice.Kind)
			assert.Contains(t, s.Notice.Message, tt.msg)

			s.Dispatch(DismissNotice{})
			assert.Nil(t, s.Notice)
		})
	}
}

func TestSelectCard(t *testing.T) {
	s := New()
	s.Dispatch(SelectCard{Index: 2})
	assert.Equal(t, 2, s.SelectedCard)
	card, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, 2, card.Index)

	s.Dispatch(SelectCard{Index: 0})
	assert.Equal(t, 0, s.SelectedCard)

	// out of range keeps the current selection
	s.Dispatch(SelectCard{Index: 9})
	assert.Equal(t, 0, s.SelectedCard)
}

func generatedStudio(t *testing.T) *Studio {
	t.Helper()
	s := New()
	submit(t, s, "a cat")
	s.Dispatch(Generated{Prompt: "a cat", Response: &api.GenerateResponse{
		Success:   true,
		Images:    []string{"a.png", "b.png", "c.png"},
		SessionID: "s1",
	}})
	return s
}

func TestApplyFilter(t *testing.T) {
	t.Run("requires a generated selection", func(t *testing.T) {
		s := New()
		s.Dispatch(SelectCard{Index: 0})
		assert.Empty(t, s.Dispatch(ApplyFilter{Filter: "Sepia", Intensity: 0.5}))
		require.NotNil(t, s.Notice)
		assert.Equal(t, NoticeValidation, s.Notice.Kind)
	})

	t.Run("sends and applies", func(t *testing.T) {
		s := generatedStudio(t)
		s.Dispatch(SelectCard{Index: 1})

		effects := s.Dispatch(ApplyFilter{Filter: "Blur", Intensity: 3})
		require.Len(t, effects, 1)
		assert.Equal(t, SendFilter{Index: 1, SessionID: "s1", Request: api.FilterRequest{
			SessionID:  "s1",
			ImageID:    1,
			FilterType: "Blur",
			Intensity:  1,
		}}, effects[0])

		s.Dispatch(FilterApplied{Index: 1, SessionID: "s1", Ref: "b_filtered.png"})
		assert.True(t, s.FilterApplied)
		assert.Equal(t, "b_filtered.png", s.Cards[1].Display())

		// choosing another image resets the flag
		s.Dispatch(SelectCard{Index: 2})
		assert.False(t, s.FilterApplied)
	})

	t.Run("reply for a replaced grid is dropped", func(t *testing.T) {
		s := generatedStudio(t)
		s.Dispatch(SelectCard{Index: 1})
		effects := s.Dispatch(ApplyFilter{Filter: "Sepia", Intensity: 0.5})
		require.Len(t, effects, 1)
		sent := effects[0].(SendFilter)

		submit(t, s, "a dog")
		s.Dispatch(Generated{Prompt: "a dog", Response: &api.GenerateResponse{
			Success:   true,
			Images:    []string{"x.png", "y.png"},
			SessionID: "s2",
		}})

		s.Dispatch(FilterApplied{Index: sent.Index, SessionID: sent.SessionID, Ref: "s1_b_sepia.png"})
		assert.Equal(t, "y.png", s.Cards[1].Display())
		assert.Empty(t, s.Cards[1].Filtered)
		assert.False(t, s.FilterApplied)

		download := s.Dispatch(Download{Index: 1})
		require.Len(t, download, 1)
		assert.Equal(t, "y.png", download[0].(SaveImage).Card.Display())
	})

	t.Run("failure", func(t *testing.T) {
		s := generatedStudio(t)
		s.Dispatch(FilterFailed{Err: &api.ServerError{Op: "apply filter", Message: "Image not found"}})
		require.NotNil(t, s.Notice)
		assert.Equal(t, "Error applying filter: Image not found", s.Notice.Message)
	})
}

func TestDownload(t *testing.T) {
	s := generatedStudio(t)

	effects := s.Dispatch(Download{Index: 1})
	require.Len(t, effects, 1)
	assert.Equal(t, SaveImage{Card: s.Cards[1], SessionID: "s1", Prompt: "a cat"}, effects[0])

	assert.Empty(t, s.Dispatch(Download{Index: 7}))

	s.Dispatch(Downloaded{Path: "out/a_cat_1.png"})
	require.NotNil(t, s.Notice)
	assert.False(t, s.Notice.IsError())

	s.Dispatch(DownloadFailed{Err: errors.New("disk full")})
	require.NotNil(t, s.Notice)
	assert.True(t, s.Notice.IsError())
}

func TestRegenerate(t *testing.T) {
	s := generatedStudio(t)
	s.Dispatch(SetPrompt{Text: "something else"})

	effects := s.Dispatch(Regenerate{})
	require.Len(t, effects, 1)
	assert.Equal(t, "a cat", effects[0].(SendGenerate).Request.Prompt)
}

func TestRegenerateWhileInFlightKeepsDraft(t *testing.T) {
	s := generatedStudio(t)
	submit(t, s, "a dog")
	require.True(t, s.Loading)
	s.Dispatch(SetPrompt{Text: "a dog on a skateboard"})

	assert.Empty(t, s.Dispatch(Regenerate{}))
	assert.Equal(t, "a dog on a skateboard", s.Prompt)
	require.NotNil(t, s.Notice)
	assert.Equal(t, NoticeInfo, s.Notice.Kind)
}
