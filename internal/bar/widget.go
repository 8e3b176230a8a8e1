package bar

// State describes how a widget should be emphasized by the renderer.
type State int

const (
	// StateIdle is the normal display state.
	StateIdle State = iota
	// StateGood marks a healthy, noteworthy value.
	StateGood
	// StateWarning marks degraded data; rendered urgent.
	StateWarning
)

// TextWidget is a single text segment on the bar. It is owned by its block
// and mutated only from the scheduler goroutine.
type TextWidget struct {
	name  string
	text  string
	state State
}

// NewTextWidget creates a widget with the given instance name. The name is
// echoed back in click events for routing.
func NewTextWidget(name string) *TextWidget {
	return &TextWidget{name: name}
}

// WithText sets the initial text and returns the widget.
func (w *TextWidget) WithText(text string) *TextWidget {
	w.text = text
	return w
}

// SetText replaces the widget's text.
func (w *TextWidget) SetText(text string) {
	w.text = text
}

// SetState sets the widget's display state.
func (w *TextWidget) SetState(state State) {
	w.state = state
}

// Name returns the widget's instance name.
func (w *TextWidget) Name() string {
	return w.name
}

// Text returns the widget's current text.
func (w *TextWidget) Text() string {
	return w.text
}

// State returns the widget's current display state.
func (w *TextWidget) State() State {
	return w.state
}

// Segment renders the widget into an i3bar protocol segment.
func (w *TextWidget) Segment() Segment {
	return Segment{
		Name:     w.name,
		FullText: w.text,
		Urgent:   w.state == StateWarning,
	}
}
