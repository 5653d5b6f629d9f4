package logger

import (
	"github.com/fatih/color"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// successKey tags entries written by Successf so the console encoder can
// swap the INFO prefix. The field itself is not printed.
const successKey = "__success"

var levelColors = map[Level]*color.Color{
	DebugLevel:   color.New(color.FgMagenta),
	InfoLevel:    color.New(color.FgBlue),
	SuccessLevel: color.New(color.FgGreen, color.Bold),
	WarnLevel:    color.New(color.FgYellow),
	ErrorLevel:   color.New(color.FgRed, color.Bold),
}

type consoleEncoder struct {
	zapcore.Encoder
	colored bool
}

func newConsoleEncoder(opts Options) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "",
		NameKey:          "logger",
		CallerKey:        "caller",
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(opts.TimestampFormat),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}
	return &consoleEncoder{Encoder: zapcore.NewConsoleEncoder(cfg), colored: opts.ColorConsole}
}

func (e *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{Encoder: e.Encoder.Clone(), colored: e.colored}
}

func (e *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	level := fromZapLevel(ent.Level)
	kept := fields[:0:0]
	for _, f := range fields {
		if f.Key == successKey {
			level = SuccessLevel
			continue
		}
		kept = append(kept, f)
	}

	body, err := e.Encoder.EncodeEntry(ent, kept)
	if err != nil {
		return nil, err
	}
	defer body.Free()

	out := bufferPool.Get()
	out.AppendString(e.prefix(level))
	out.AppendByte(' ')
	out.AppendString(body.String())
	return out, nil
}

func (e *consoleEncoder) prefix(level Level) string {
	text := "[" + level.CapitalString() + "]"
	if !e.colored {
		return text
	}
	if c, ok := levelColors[level]; ok {
		return c.Sprint(text)
	}
	return text
}

func fromZapLevel(l zapcore.Level) Level {
	switch l {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.InfoLevel:
		return InfoLevel
	case zapcore.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

var bufferPool = buffer.NewPool()
