package data

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
)

type errorRecord struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Clip       string                 `json:"clip"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

// toErrorRecord accepts a model.CustomError or any error.
func toErrorRecord(err interface{}) (errorRecord, error) {
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr.Processor = "N/A"
		customErr.Inner = e
		customErr.Message = e.Error()
		customErr.StackTrace = "N/A"
	default:
		return errorRecord{}, xerrors.Errorf("unsupported error value %T", err)
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}

	return errorRecord{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Clip:       customErr.Clip,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}, nil
}
