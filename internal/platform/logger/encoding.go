package logger

import (
	"bytes"

	"github.com/nulzo/model-bridge/internal/cli"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var lines = buffer.NewPool()

// fieldsMarker separates the console header from the JSON-encoded context fields.
var fieldsMarker = []byte("\t{")

// coloredConsoleEncoder is zap's console encoder with the field object run through
// cli.HighlightJSON.
type coloredConsoleEncoder struct {
	zapcore.Encoder
}

func NewColoredConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return coloredConsoleEncoder{Encoder: zapcore.NewConsoleEncoder(cfg)}
}

func (e coloredConsoleEncoder) Clone() zapcore.Encoder {
	return coloredConsoleEncoder{Encoder: e.Encoder.Clone()}
}

func (e coloredConsoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	raw, err := e.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}

	at := bytes.Index(raw.Bytes(), fieldsMarker)
	if at < 0 {
		return raw, nil
	}

	colored := lines.Get()
	_, _ = colored.Write(raw.Bytes()[:at+1])
	colored.AppendString(cli.HighlightJSON(string(raw.Bytes()[at+1:])))
	raw.Free()
	return colored, nil
}
