package core

// Mutation is the outcome of a write. Failures are reported in Error rather
// than as transport errors so callers can keep the user's input around.
type Mutation struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Succeeded reports a successful write of the record with the given ID.
func Succeeded(id string) Mutation {
	return Mutation{Success: true, ID: id}
}

// Failed reports a rejected or failed write.
func Failed(err error) Mutation {
	if err == nil {
		return Mutation{Success: false, Error: "unknown error"}
	}
	return Mutation{Success: false, Error: err.Error()}
}

// Err converts a failed mutation back into an error. It returns nil on success.
func (m Mutation) Err() error {
	if m.Success {
		return nil
	}
	return mutationError(m.Error)
}

type mutationError string

func (e mutationError) Error() string { return string(e) }

// Result is the outcome of a read.
type Result[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
}

// Ok wraps data read successfully.
func Ok[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

// Fail reports a failed read. Data is left at its zero value.
func Fail[T any](err error) Result[T] {
	var r Result[T]
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
