package logging

import (
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// FlatJSONEncoder is a Zap encoder that outputs one flat JSON object per
// entry, with fields merged into the top level. Some log shippers cannot
// index nested field objects.
type FlatJSONEncoder struct {
	zapcore.Encoder
	config zapcore.EncoderConfig
}

// NewFlatJSONEncoder creates a new flattened JSON encoder
func NewFlatJSONEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &FlatJSONEncoder{
		Encoder: zapcore.NewJSONEncoder(config),
		config:  config,
	}
}

// EncodeEntry encodes a log entry as a single flat JSON object
func (e *FlatJSONEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	logObj := map[string]interface{}{
		"timestamp": entry.Time.Format(time.RFC3339Nano),
		"level":     entry.Level.String(),
		"message":   entry.Message,
		"logger":    entry.LoggerName,
	}

	if entry.Caller.Defined {
		logObj["file"] = entry.Caller.File
		logObj["line"] = entry.Caller.Line
		logObj["function"] = entry.Caller.Function
	}

	if entry.Stack != "" {
		logObj["stack"] = entry.Stack
	}

	for _, field := range fields {
		switch field.Type {
		case zapcore.StringType:
			logObj[field.Key] = field.String
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
			logObj[field.Key] = field.Integer
		case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
			logObj[field.Key] = field.Integer
		case zapcore.BoolType:
			logObj[field.Key] = field.Integer == 1
		case zapcore.DurationType:
			logObj[field.Key] = time.Duration(field.Integer).String()
		case zapcore.TimeType:
			logObj[field.Key] = time.Unix(0, field.Integer).Format(time.RFC3339Nano)
		case zapcore.ErrorType:
			logObj[field.Key] = field.Interface.(error).Error()
		default:
			// For complex types, use the interface value
			logObj[field.Key] = field.Interface
		}
	}

	buf := buffer.NewPool().Get()
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(logObj); err != nil {
		return nil, err
	}

	return buf, nil
}

// Clone creates a copy of the encoder
func (e *FlatJSONEncoder) Clone() zapcore.Encoder {
	return &FlatJSONEncoder{
		Encoder: e.Encoder.Clone(),
		config:  e.config,
	}
}
