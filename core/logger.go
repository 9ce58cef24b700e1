package core

// Logger is any service able to report messages & errors.
// expected args fmt: error | map[string]interface{} | fmt.Stringer
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
