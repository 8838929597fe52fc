package scanner

import (
	"errors"
	"fmt"
)

// Reason classifies why a scan failed
type Reason string

const (
	ReasonToolMissing   Reason = "tool_missing"
	ReasonDeviceMissing Reason = "device_missing"
	ReasonTimeout       Reason = "timeout"
	ReasonParse         Reason = "parse_error"
	ReasonToolError     Reason = "tool_error"
)

var (
	ErrToolMissing   = errors.New("scan tool not found")
	ErrDeviceMissing = errors.New("no SDR device available")
	ErrScanTimeout   = errors.New("scan timed out")
	ErrParse         = errors.New("scan output could not be parsed")
	ErrToolFailed    = errors.New("scan tool failed")
)

// ScanFailure is returned when a whole band scan produced no usable data
type ScanFailure struct {
	Reason Reason
	Band   string
	Output string // combined tool output, trimmed
	Err    error
}

func (f *ScanFailure) Error() string {
	msg := fmt.Sprintf("scan %s failed: %s", f.Band, f.Reason)
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

// Unwrap exposes both the reason sentinel and the underlying error to errors.Is/As
func (f *ScanFailure) Unwrap() []error {
	errs := []error{f.sentinel()}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

func (f *ScanFailure) sentinel() error {
	switch f.Reason {
	case ReasonToolMissing:
		return ErrToolMissing
	case ReasonDeviceMissing:
		return ErrDeviceMissing
	case ReasonTimeout:
		return ErrScanTimeout
	case ReasonParse:
		return ErrParse
	default:
		return ErrToolFailed
	}
}

// IsScanFailure reports whether err is a *ScanFailure and returns it
func IsScanFailure(err error) (*ScanFailure, bool) {
	var f *ScanFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
