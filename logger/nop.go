package logger

// NopLogger discards all log output. Useful in tests and as an explicit
// opt-out for library users.
type NopLogger struct{}

var _ Logger = (*NopLogger)(nil)

func NewNop() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}

func (*NopLogger) Info(string, ...any) {}

func (*NopLogger) Warn(string, ...any) {}

func (*NopLogger) Error(string, ...any) {}

func (*NopLogger) Fatal(string, ...any) {}

func (n *NopLogger) With(...any) Logger { return n }

func (*NopLogger) Level() Level { return ErrorLevel }

func (*NopLogger) SetLevel(Level) {}
