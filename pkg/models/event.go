package models

// VerificationResult is the outcome of a Validator pass over an Event.
type VerificationResult string

const (
	VerificationNotVerified VerificationResult = "not verified"
	VerificationKeep        VerificationResult = "keep"
	VerificationRemove      VerificationResult = "remove"
)

// Event is a candidate (or confirmed) labeled region discovered by the
// agent pipeline, keyed by (EventName, Start, End) per spec.md §3.
type Event struct {
	ID                 string
	EventName          string
	StartIndex         int
	EndIndex           int
	VisualPattern      string
	NeedVerification   bool
	VerificationGuide  string
	VerificationResult VerificationResult
}

// Key returns the identity tuple used for set membership in
// AgentState.DetectedEvents.
func (e Event) Key() string {
	return e.EventName + "|" + itoa(e.StartIndex) + "|" + itoa(e.EndIndex)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Label is the persisted, file-attached form of an Event once the agent run
// completes (spec.md §3 Event → label translation, §4.12).
type Label struct {
	ClassName    string
	Color        string
	Description  string
	Labeler      string
	Start        int
	End          int
	Hide         bool
	AutoDetected bool
}

// DefaultLabelColor is used when a project's class list has no color for
// the detected event name.
const DefaultLabelColor = "#999999"

// AutoDetectedDescription is the fixed description stamped on every label
// produced by the multi-agent detector (spec.md §4.12).
const AutoDetectedDescription = "Auto-detected: Multi-agent detection"

// AutoDetectedLabeler is the fixed labeler name for multi-agent output.
const AutoDetectedLabeler = "AI Multi-Agent"

// NewLabelFromEvent builds the persisted Label for a finalized Event,
// looking up the class color from the project's class list (or falling
// back to DefaultLabelColor).
func NewLabelFromEvent(e Event, classColors map[string]string) Label {
	color, ok := classColors[e.EventName]
	if !ok {
		color = DefaultLabelColor
	}
	return Label{
		ClassName:    e.EventName,
		Color:        color,
		Description:  AutoDetectedDescription,
		Labeler:      AutoDetectedLabeler,
		Start:        e.StartIndex,
		End:          e.EndIndex,
		Hide:         false,
		AutoDetected: true,
	}
}
