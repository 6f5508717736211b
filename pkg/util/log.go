package util

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

const (
	LogComponentField = "pkg"

	defaultComponent = "diagd"
)

// DiagFormatter prefixes every line with the component that logged it.
type DiagFormatter struct {
	*logrus.TextFormatter
}

// SetUpLogger tees the process log into logPath, the monitor log served to
// diagnostic peers. The returned closer releases the file.
func SetUpLogger(logPath string) (io.Closer, error) {
	logPath, err := filepath.Abs(logPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log directory for %v", logPath)
	}
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open monitor log %v", logPath)
	}

	logrus.Infof("Storing process logs at path: %v", logPath)
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	logrus.SetFormatter(NewFormatter())
	return f, nil
}

func NewFormatter() DiagFormatter {
	return DiagFormatter{
		TextFormatter: &logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		},
	}
}

func (l DiagFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	component := defaultComponent
	if v, ok := entry.Data[LogComponentField]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("field pkg must be a string")
		}
		component = s
	}

	// the component is already in the prefix
	data := make(logrus.Fields, len(entry.Data))
	for k, v := range entry.Data {
		if k != LogComponentField {
			data[k] = v
		}
	}
	stripped := *entry
	stripped.Data = data

	msg, err := l.TextFormatter.Format(&stripped)
	if err != nil {
		return nil, err
	}

	logMsg := &bytes.Buffer{}
	logMsg.WriteString("[" + component + "] ")
	logMsg.Write(msg)
	return logMsg.Bytes(), nil
}
