package commands

import (
	"fmt"
	"time"

	plog "github.com/fieldlink/fieldlink-go/pkg/log"
)

// FilterOptions holds the filter flags shared by view, export and filter.
type FilterOptions struct {
	ConnID    string
	SerialNo  string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Build parses the options into a reader filter.
func (o FilterOptions) Build() (plog.Filter, error) {
	filter := plog.Filter{
		ConnectionID: o.ConnID,
		SerialNo:     o.SerialNo,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// RunFilter copies the events of path that pass filter into a new capture
// file and returns how many were written.
func RunFilter(path, output string, filter plog.Filter) (int, error) {
	if output == "" {
		return 0, fmt.Errorf("output file required")
	}
	out, err := plog.NewFileLogger(output)
	if err != nil {
		return 0, err
	}

	n := 0
	err = eachEvent(path, filter, func(e plog.Event) error {
		out.Log(e)
		n++
		return nil
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if d := out.Dropped(); d > 0 {
		return n - d, fmt.Errorf("%d events could not be written", d)
	}
	return n, nil
}
