package core

// Logger is any leveled logger.
// expected args: error, map[string]interface{}, Actor
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies the staff member (supervisor, accountant, admin) behind an operation.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func (a Actor) String() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
