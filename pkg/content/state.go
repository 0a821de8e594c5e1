package content

// Matrix represents a 2D transformation matrix
type Matrix struct {
	A, B, C, D, E, F float64
}

// IdentityMatrix returns an identity matrix
func IdentityMatrix() Matrix {
	return Matrix{A: 1, B: 0, C: 0, D: 1, E: 0, F: 0}
}

// Multiply multiplies two matrices
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.C,
		B: m.A*other.B + m.B*other.D,
		C: m.C*other.A + m.D*other.C,
		D: m.C*other.B + m.D*other.D,
		E: m.E*other.A + m.F*other.C + other.E,
		F: m.E*other.B + m.F*other.D + other.F,
	}
}

// Translate creates a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{A: 1, B: 0, C: 0, D: 1, E: tx, F: ty}
}

// GraphicsState holds the parts of the graphics state that affect text
// placement. q/Q save and restore it.
type GraphicsState struct {
	CTM      Matrix
	FontName string
	FontSize float64
	Leading  float64
}

// NewGraphicsState creates a new graphics state with defaults
func NewGraphicsState() GraphicsState {
	return GraphicsState{CTM: IdentityMatrix()}
}

// StateStack manages graphics state stack for save/restore operations
type StateStack struct {
	states []GraphicsState
}

// NewStateStack creates a new state stack
func NewStateStack() *StateStack {
	return &StateStack{states: []GraphicsState{NewGraphicsState()}}
}

// Current returns the current graphics state
func (s *StateStack) Current() *GraphicsState {
	return &s.states[len(s.states)-1]
}

// Save pushes a copy of the current state
func (s *StateStack) Save() {
	s.states = append(s.states, *s.Current())
}

// Restore pops the current state; an unbalanced Q is ignored
func (s *StateStack) Restore() {
	if len(s.states) > 1 {
		s.states = s.states[:len(s.states)-1]
	}
}

// textObject tracks the text and text line matrices between BT and ET
type textObject struct {
	tm  Matrix
	tlm Matrix
}

func newTextObject() textObject {
	return textObject{tm: IdentityMatrix(), tlm: IdentityMatrix()}
}

// moveLine starts a new line offset from the current line start
func (t *textObject) moveLine(tx, ty float64) {
	t.tlm = Translate(tx, ty).Multiply(t.tlm)
	t.tm = t.tlm
}

// set replaces both matrices
func (t *textObject) set(m Matrix) {
	t.tm = m
	t.tlm = m
}
