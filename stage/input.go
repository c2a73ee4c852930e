package stage

// Input is the payload handed to a stage. It is immutable once created:
// the executor builds a fresh Input per stage rather than mutating one
// in place.
type Input struct {
	// Payload is the original request payload.
	Payload any `json:"payload"`
	// Previous is the previous stage's output, when running
	// sequentially. Nil for the first stage and for parallel chains.
	Previous any `json:"previous,omitempty"`
}

// Merge returns a new Input carrying the original payload with prev
// attached as the previous-stage output.
func Merge(original Input, prev any) Input {
	return Input{Payload: original.Payload, Previous: prev}
}
