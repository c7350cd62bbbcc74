package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorMagenta = "\x1b[35m"
	colorReset   = "\x1b[0m"
)

var _bufferPool = buffer.NewPool()

// colorConsoleEncoder is a zapcore.Encoder that prints a bracketed level
// prefix (colored, for SuccessLevel's distinct console styling) ahead of
// the message, plus a "[R:<run_id>]" prefix when the entry carries a
// run_id field (every RuntimeExecutionContext logger is tagged with one
// via logger.Tee(...).With("run_id", ...)).
type colorConsoleEncoder struct {
	zapcore.EncoderConfig
	colors       bool
	timeFormat   string
	levelStrings map[Level]string
}

// NewColorConsoleEncoder builds a console encoder with ANSI color codes.
func NewColorConsoleEncoder(cfg zapcore.EncoderConfig, opts Options) zapcore.Encoder {
	return &colorConsoleEncoder{EncoderConfig: cfg, colors: true, timeFormat: opts.TimestampFormat, levelStrings: cacheLevelStrings(true)}
}

// NewPlainTextConsoleEncoder builds a console encoder without color codes.
func NewPlainTextConsoleEncoder(cfg zapcore.EncoderConfig, opts Options) zapcore.Encoder {
	return &colorConsoleEncoder{EncoderConfig: cfg, colors: false, timeFormat: opts.TimestampFormat, levelStrings: cacheLevelStrings(false)}
}

func cacheLevelStrings(color bool) map[Level]string {
	levels := []Level{DebugLevel, InfoLevel, SuccessLevel, WarnLevel, ErrorLevel}
	m := make(map[Level]string, len(levels))
	for _, l := range levels {
		str := fmt.Sprintf("[%s]", l.CapitalString())
		if color {
			str = levelToColor(l, str)
		}
		m[l] = str
	}
	return m
}

func (enc *colorConsoleEncoder) Clone() zapcore.Encoder {
	return &colorConsoleEncoder{EncoderConfig: enc.EncoderConfig, colors: enc.colors, timeFormat: enc.timeFormat, levelStrings: enc.levelStrings}
}

// The AddXxx/AppendXxx methods below exist only to satisfy
// zapcore.ObjectEncoder/ArrayEncoder; EncodeEntry reads fields directly
// from the []zapcore.Field it's handed rather than from an accumulated
// buffer, so none of them need to do anything.
func (enc *colorConsoleEncoder) OpenNamespace(string)                                {}
func (enc *colorConsoleEncoder) AddArray(string, zapcore.ArrayMarshaler) error        { return nil }
func (enc *colorConsoleEncoder) AddObject(string, zapcore.ObjectMarshaler) error      { return nil }
func (enc *colorConsoleEncoder) AddBinary(string, []byte)                            {}
func (enc *colorConsoleEncoder) AddByteString(string, []byte)                        {}
func (enc *colorConsoleEncoder) AddBool(string, bool)                                {}
func (enc *colorConsoleEncoder) AddComplex128(string, complex128)                     {}
func (enc *colorConsoleEncoder) AddComplex64(string, complex64)                       {}
func (enc *colorConsoleEncoder) AddDuration(string, time.Duration)                    {}
func (enc *colorConsoleEncoder) AddFloat64(string, float64)                          {}
func (enc *colorConsoleEncoder) AddFloat32(string, float32)                          {}
func (enc *colorConsoleEncoder) AddInt(string, int)                                  {}
func (enc *colorConsoleEncoder) AddInt64(string, int64)                              {}
func (enc *colorConsoleEncoder) AddInt32(string, int32)                              {}
func (enc *colorConsoleEncoder) AddInt16(string, int16)                              {}
func (enc *colorConsoleEncoder) AddInt8(string, int8)                                {}
func (enc *colorConsoleEncoder) AddString(string, string)                            {}
func (enc *colorConsoleEncoder) AddTime(string, time.Time)                           {}
func (enc *colorConsoleEncoder) AddUint(string, uint)                                {}
func (enc *colorConsoleEncoder) AddUint64(string, uint64)                            {}
func (enc *colorConsoleEncoder) AddUint32(string, uint32)                            {}
func (enc *colorConsoleEncoder) AddUint16(string, uint16)                            {}
func (enc *colorConsoleEncoder) AddUint8(string, uint8)                              {}
func (enc *colorConsoleEncoder) AddUintptr(string, uintptr)                          {}
func (enc *colorConsoleEncoder) AddReflected(string, interface{}) error              { return nil }
func (enc *colorConsoleEncoder) AppendArray(zapcore.ArrayMarshaler) error            { return nil }
func (enc *colorConsoleEncoder) AppendObject(zapcore.ObjectMarshaler) error          { return nil }
func (enc *colorConsoleEncoder) AppendBool(bool)                                     {}
func (enc *colorConsoleEncoder) AppendByteString([]byte)                             {}
func (enc *colorConsoleEncoder) AppendBinary([]byte)                                 {}
func (enc *colorConsoleEncoder) AppendComplex128(complex128)                         {}
func (enc *colorConsoleEncoder) AppendComplex64(complex64)                           {}
func (enc *colorConsoleEncoder) AppendDuration(time.Duration)                        {}
func (enc *colorConsoleEncoder) AppendFloat64(float64)                              {}
func (enc *colorConsoleEncoder) AppendFloat32(float32)                              {}
func (enc *colorConsoleEncoder) AppendInt(int)                                      {}
func (enc *colorConsoleEncoder) AppendInt64(int64)                                  {}
func (enc *colorConsoleEncoder) AppendInt32(int32)                                  {}
func (enc *colorConsoleEncoder) AppendInt16(int16)                                  {}
func (enc *colorConsoleEncoder) AppendInt8(int8)                                    {}
func (enc *colorConsoleEncoder) AppendString(string)                                {}
func (enc *colorConsoleEncoder) AppendTime(time.Time)                               {}
func (enc *colorConsoleEncoder) AppendUint(uint)                                    {}
func (enc *colorConsoleEncoder) AppendUint64(uint64)                                {}
func (enc *colorConsoleEncoder) AppendUint32(uint32)                                {}
func (enc *colorConsoleEncoder) AppendUint16(uint16)                                {}
func (enc *colorConsoleEncoder) AppendUint8(uint8)                                  {}
func (enc *colorConsoleEncoder) AppendUintptr(uintptr)                              {}

// EncodeEntry formats one log line: timestamp, an optional "[R:<run_id>]"
// prefix, the level, the caller, the message, then any remaining
// structured fields as key=value pairs.
func (enc *colorConsoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := _bufferPool.Get()

	if enc.TimeKey != "" {
		line.AppendString(ent.Time.Format(enc.timeFormat))
		line.AppendString(" ")
	}

	var runID string
	customLevelStr := ""
	ourLevel := InfoLevel
	remaining := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		switch {
		case f.Key == "run_id" && f.Type == zapcore.StringType:
			runID = f.String
		case f.Key == "customlevel" && f.Type == zapcore.StringType:
			ourLevel = levelFromCapitalString(f.String)
			customLevelStr = enc.levelStrings[ourLevel]
		default:
			remaining = append(remaining, f)
		}
	}
	if runID != "" {
		line.AppendString(fmt.Sprintf("[R:%s] ", runID))
	}

	if customLevelStr == "" {
		levelText := fmt.Sprintf("[%s]", strings.ToUpper(ent.Level.String()))
		if enc.colors {
			levelText = levelToColorZap(ent.Level, levelText)
		}
		customLevelStr = levelText
	}
	line.AppendString(customLevelStr)
	line.AppendString(" ")

	if ent.Caller.Defined && enc.CallerKey != "" && enc.EncodeCaller != nil {
		callerBuf := _bufferPool.Get()
		tempEnc := &tempEncoder{buf: callerBuf, EncoderConfig: enc.EncoderConfig}
		enc.EncodeCaller(ent.Caller, tempEnc)
		if callerBuf.Len() > 0 {
			line.Write(callerBuf.Bytes())
			line.AppendString(": ")
		}
		callerBuf.Free()
	}

	line.AppendString(ent.Message)

	for _, f := range remaining {
		line.AppendString(" ")
		line.AppendString(f.Key)
		line.AppendString("=")
		switch f.Type {
		case zapcore.StringType:
			if strings.Contains(f.String, " ") || f.String == "" {
				fmt.Fprintf(line, "%q", f.String)
			} else {
				line.AppendString(f.String)
			}
		case zapcore.ErrorType:
			if f.Interface != nil {
				fmt.Fprintf(line, "%q", f.Interface.(error).Error())
			} else {
				line.AppendString("nil")
			}
		case zapcore.BoolType:
			line.AppendBool(f.Integer == 1)
		case zapcore.Int8Type, zapcore.Int16Type, zapcore.Int32Type, zapcore.Int64Type:
			line.AppendInt(f.Integer)
		case zapcore.Uint8Type, zapcore.Uint16Type, zapcore.Uint32Type, zapcore.Uint64Type, zapcore.UintptrType:
			line.AppendUint(f.Integer)
		case zapcore.Float32Type:
			line.AppendFloat(float64(f.Interface.(float32)), 32)
		case zapcore.Float64Type:
			line.AppendFloat(f.Interface.(float64), 64)
		default:
			fmt.Fprintf(line, "%v", f.Interface)
		}
	}

	line.AppendString(enc.LineEnding)
	return line, nil
}

func levelFromCapitalString(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DebugLevel
	case "SUCCESS":
		return SuccessLevel
	case "WARN":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// tempEncoder is a minimal zapcore.PrimitiveArrayEncoder/ObjectEncoder used
// only to capture zap's EncodeCaller output into a buffer.
type tempEncoder struct {
	buf *buffer.Buffer
	zapcore.EncoderConfig
}

func (t *tempEncoder) AddArray(string, zapcore.ArrayMarshaler) error   { return nil }
func (t *tempEncoder) AddObject(string, zapcore.ObjectMarshaler) error { return nil }
func (t *tempEncoder) AddBinary(string, []byte)                       {}
func (t *tempEncoder) AddByteString(_ string, v []byte)                { t.AppendByteString(v) }
func (t *tempEncoder) AddBool(_ string, v bool)                        { t.AppendBool(v) }
func (t *tempEncoder) AddComplex128(_ string, v complex128)            { t.AppendComplex128(v) }
func (t *tempEncoder) AddComplex64(_ string, v complex64)              { t.AppendComplex64(v) }
func (t *tempEncoder) AddDuration(_ string, v time.Duration)           { t.AppendDuration(v) }
func (t *tempEncoder) AddFloat64(_ string, v float64)                  { t.AppendFloat64(v) }
func (t *tempEncoder) AddFloat32(_ string, v float32)                  { t.AppendFloat32(v) }
func (t *tempEncoder) AddInt(_ string, v int)                          { t.AppendInt(v) }
func (t *tempEncoder) AddInt64(_ string, v int64)                      { t.AppendInt64(v) }
func (t *tempEncoder) AddInt32(_ string, v int32)                      { t.AppendInt32(v) }
func (t *tempEncoder) AddInt16(_ string, v int16)                      { t.AppendInt16(v) }
func (t *tempEncoder) AddInt8(_ string, v int8)                        { t.AppendInt8(v) }
func (t *tempEncoder) AddString(key, val string) {
	if key != "" {
		t.buf.AppendString(key)
		t.buf.AppendString("=")
	}
	t.buf.AppendString(val)
}
func (t *tempEncoder) AddTime(_ string, v time.Time)  { t.AppendTime(v) }
func (t *tempEncoder) AddUint(_ string, v uint)       { t.AppendUint(v) }
func (t *tempEncoder) AddUint64(_ string, v uint64)   { t.AppendUint64(v) }
func (t *tempEncoder) AddUint32(_ string, v uint32)   { t.AppendUint32(v) }
func (t *tempEncoder) AddUint16(_ string, v uint16)   { t.AppendUint16(v) }
func (t *tempEncoder) AddUint8(_ string, v uint8)     { t.AppendUint8(v) }
func (t *tempEncoder) AddUintptr(string, uintptr)     {}
func (t *tempEncoder) AddReflected(string, interface{}) error { return nil }
func (t *tempEncoder) OpenNamespace(string)           {}
func (t *tempEncoder) Clone() zapcore.Encoder         { return t }
func (t *tempEncoder) EncodeEntry(zapcore.Entry, []zapcore.Field) (*buffer.Buffer, error) {
	return t.buf, nil
}
func (t *tempEncoder) AppendArray(zapcore.ArrayMarshaler) error   { return nil }
func (t *tempEncoder) AppendObject(zapcore.ObjectMarshaler) error { return nil }
func (t *tempEncoder) AppendBool(v bool)                          { t.buf.AppendBool(v) }
func (t *tempEncoder) AppendByteString(v []byte)                  { t.buf.AppendString(string(v)) }
func (t *tempEncoder) AppendBinary(v []byte)                      { t.buf.AppendString(string(v)) }
func (t *tempEncoder) AppendComplex128(v complex128)              { t.buf.AppendString(fmt.Sprintf("%v", v)) }
func (t *tempEncoder) AppendComplex64(v complex64)                { t.buf.AppendString(fmt.Sprintf("%v", v)) }
func (t *tempEncoder) AppendDuration(v time.Duration)             { t.buf.AppendString(v.String()) }
func (t *tempEncoder) AppendFloat64(v float64)                    { t.buf.AppendFloat(v, 64) }
func (t *tempEncoder) AppendFloat32(v float32)                    { t.buf.AppendFloat(float64(v), 32) }
func (t *tempEncoder) AppendInt(v int)                            { t.buf.AppendInt(int64(v)) }
func (t *tempEncoder) AppendInt64(v int64)                        { t.buf.AppendInt(v) }
func (t *tempEncoder) AppendInt32(v int32)                        { t.buf.AppendInt(int64(v)) }
func (t *tempEncoder) AppendInt16(v int16)                        { t.buf.AppendInt(int64(v)) }
func (t *tempEncoder) AppendInt8(v int8)                          { t.buf.AppendInt(int64(v)) }
func (t *tempEncoder) AppendString(v string)                      { t.buf.AppendString(v) }
func (t *tempEncoder) AppendTime(v time.Time) {
	t.buf.AppendTime(v, t.EncoderConfig.EncodeTime.Layout())
}
func (t *tempEncoder) AppendUint(v uint)     { t.buf.AppendUint(uint64(v)) }
func (t *tempEncoder) AppendUint64(v uint64) { t.buf.AppendUint(v) }
func (t *tempEncoder) AppendUint32(v uint32) { t.buf.AppendUint(uint64(v)) }
func (t *tempEncoder) AppendUint16(v uint16) { t.buf.AppendUint(uint64(v)) }
func (t *tempEncoder) AppendUint8(v uint8)   { t.buf.AppendUint(uint64(v)) }
func (t *tempEncoder) AppendUintptr(uintptr) {}

func levelToColor(level Level, message string) string {
	switch level {
	case DebugLevel:
		return colorMagenta + message + colorReset
	case SuccessLevel:
		return colorGreen + message + colorReset
	case WarnLevel:
		return colorYellow + message + colorReset
	case ErrorLevel:
		return colorRed + message + colorReset
	default:
		return message
	}
}

func levelToColorZap(level zapcore.Level, message string) string {
	switch level {
	case zapcore.DebugLevel:
		return colorMagenta + message + colorReset
	case zapcore.WarnLevel:
		return colorYellow + message + colorReset
	case zapcore.ErrorLevel:
		return colorRed + message + colorReset
	default:
		return message
	}
}
