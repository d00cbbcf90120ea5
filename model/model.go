package model

import (
	"fmt"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Clip       string                 `json:"clip"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// ClipRecord is the ledger entry of one processed clip.
type ClipRecord struct {
	ID        string `json:"id"`
	Clip      string `json:"clip"`
	Source    string `json:"source"`
	Stage     string `json:"stage"`  // mask, inpaint, run
	Status    string `json:"status"` // queued, running, done, failed
	Backend   string `json:"backend"`
	Frames    int    `json:"frames"`
	ResultDir string `json:"resultDir"`
	Error     string `json:"error,omitempty"`
	StartedAt int64  `json:"startedAt"`
	EndedAt   int64  `json:"endedAt"`
}

const (
	ClipStatusQueued  = "queued"
	ClipStatusRunning = "running"
	ClipStatusDone    = "done"
	ClipStatusFailed  = "failed"
)

type MaskerStats struct {
	Name         string  `json:"name"`
	Clip         string  `json:"clip"`
	Frames       int     `json:"frames"`
	Primaries    int     `json:"primaries"`
	Rejected     int     `json:"rejected"`
	Dependents   int     `json:"dependents"`
	MaskedPixels int     `json:"maskedPixels"`
	Errors       int     `json:"errors"`
	Uptime       int64   `json:"uptime"`
	AvgProcTime  float64 `json:"avgProcTime"`
	Timestamp    int64   `json:"timestamp"`
}

type InpainterStats struct {
	Name        string  `json:"name"`
	Clip        string  `json:"clip"`
	Backend     string  `json:"backend"`
	Frames      int     `json:"frames"`
	Windows     int     `json:"windows"`
	Blends      int     `json:"blends"`
	TrimmedRefs int     `json:"trimmedRefs"`
	OverBudget  int     `json:"overBudget"`
	Workers     int     `json:"workers"`
	Uptime      int64   `json:"uptime"`
	AvgProcTime float64 `json:"avgProcTime"`
	Timestamp   int64   `json:"timestamp"`
}

type WatcherStats struct {
	Name      string `json:"name"`
	Queued    int    `json:"queued"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}
