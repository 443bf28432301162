package sdk

// Kind tags the four canonical event streams.
type Kind string

const (
	KindPageView    Kind = "page_view"
	KindInteraction Kind = "interaction"
	KindException   Kind = "exception"
	KindTiming      Kind = "timing"
)

// Kinds lists every stream the bus carries.
func Kinds() []Kind {
	return []Kind{KindPageView, KindInteraction, KindException, KindTiming}
}

// Event is anything that can travel on the bus. The bus only looks at the
// kind; payload fields are checked by the adapters.
type Event interface {
	Kind() Kind
}

type PageView struct {
	Path string `json:"path"`
}

func (PageView) Kind() Kind { return KindPageView }

// InteractionProperties are the recognized options of an interaction.
// Nil pointer fields are absent.
type InteractionProperties struct {
	Category       string         `json:"category,omitempty"`
	Label          *string        `json:"label,omitempty"`
	Value          *float64       `json:"value,omitempty"`
	NonInteraction *bool          `json:"nonInteraction,omitempty"`
	ProviderCustom map[string]any `json:"providerCustom,omitempty"`
}

type Interaction struct {
	Action     string                 `json:"action"`
	Properties *InteractionProperties `json:"properties,omitempty"`
}

func (Interaction) Kind() Kind { return KindInteraction }

// Exception reports an application error. A nil Fatal is sent as fatal.
// When SourceEvent is set its formatted trace replaces Description.
type Exception struct {
	Description    string         `json:"description,omitempty"`
	Fatal          *bool          `json:"fatal,omitempty"`
	SourceEvent    error          `json:"-"`
	ProviderCustom map[string]any `json:"providerCustom,omitempty"`
}

func (Exception) Kind() Kind { return KindException }

// Timing is a user timing measurement. Empty category/label are absent.
type Timing struct {
	TimingVar      string  `json:"timingVar"`
	TimingValue    float64 `json:"timingValue"`
	TimingCategory string  `json:"timingCategory,omitempty"`
	TimingLabel    string  `json:"timingLabel,omitempty"`
}

func (Timing) Kind() Kind { return KindTiming }

// TimingView is the adapter-facing projection of Timing.
type TimingView struct {
	Name     string
	Value    float64
	Category string
	Label    string
}
