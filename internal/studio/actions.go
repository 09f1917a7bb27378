package studio

import (
	"time"

	"github.com/blacktop/fluxstudio/internal/api"
)

// Action is a UI event handled by Studio.Dispatch.
type Action interface{ isAction() }

type (
	ToggleDropdown struct{ Group string }
	SearchDropdown struct{ Group, Term string }
	SelectOption   struct{ Group, Value string }
	// CloseDropdowns is any interaction outside every dropdown.
	CloseDropdowns struct{}

	SetPrompt         struct{ Text string }
	SetNegativePrompt struct{ Text string }
	SelectAspect      struct{ Ratio string }
	SelectCount       struct{ Label string }
	SetPrivateMode    struct{ On bool }
	SetSteps          struct{ Steps int }
	SetGuidanceScale  struct{ Scale float64 }
	// SetSeed carries the raw seed input; anything that is not an integer
	// means a random seed.
	SetSeed struct{ Raw string }

	Submit     struct{}
	Regenerate struct{}
	Generated  struct {
		Prompt   string
		Response *api.GenerateResponse
	}
	GenerateFailed struct{ Err error }

	ShowPlaceholders struct{ Count int }
	SelectCard       struct{ Index int }

	ApplyFilter struct {
		Filter    string
		Intensity float64
	}
	FilterApplied struct {
		Index     int
		SessionID string
		Ref       string
	}
	FilterFailed struct{ Err error }

	Download       struct{ Index int }
	Downloaded     struct{ Path string }
	DownloadFailed struct{ Err error }

	TokenBalanceLoaded struct{ Balance float64 }
	DismissNotice      struct{}
)

func (ToggleDropdown) isAction()     {}
func (SearchDropdown) isAction()     {}
func (SelectOption) isAction()       {}
func (CloseDropdowns) isAction()     {}
func (SetPrompt) isAction()          {}
func (SetNegativePrompt) isAction()  {}
func (SelectAspect) isAction()       {}
func (SelectCount) isAction()        {}
func (SetPrivateMode) isAction()     {}
func (SetSteps) isAction()           {}
func (SetGuidanceScale) isAction()   {}
func (SetSeed) isAction()            {}
func (Submit) isAction()             {}
func (Regenerate) isAction()         {}
func (Generated) isAction()          {}
func (GenerateFailed) isAction()     {}
func (ShowPlaceholders) isAction()   {}
func (SelectCard) isAction()         {}
func (ApplyFilter) isAction()        {}
func (FilterApplied) isAction()      {}
func (FilterFailed) isAction()       {}
func (Download) isAction()           {}
func (Downloaded) isAction()         {}
func (DownloadFailed) isAction()     {}
func (TokenBalanceLoaded) isAction() {}
func (DismissNotice) isAction()      {}

// Effect is a side effect requested by Dispatch. The caller performs it
// and reports the outcome back as another Action.
type Effect interface{ isEffect() }

type (
	// FocusSearch asks for the search field of Group to take focus once
	// After has elapsed, so the menu is visible first.
	FocusSearch struct {
		Group string
		After time.Duration
	}
	SendGenerate struct{ Request api.GenerationRequest }
	SendFilter   struct {
		Index     int
		SessionID string
		Request   api.FilterRequest
	}
	SaveImage struct {
		Card      Card
		SessionID string
		Prompt    string
	}
)

func (FocusSearch) isEffect()  {}
func (SendGenerate) isEffect() {}
func (SendFilter) isEffect()   {}
func (SaveImage) isEffect()    {}
