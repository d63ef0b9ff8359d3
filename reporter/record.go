package reporter

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/cloudbox/tally"
)

const noData = "no data"

// Record is the output of one reporting cycle.
type Record struct {
	// Time is the number of seconds since the reporter was created.
	Time   float64
	Values []Value
}

// Value is one counter inside a Record.
type Value struct {
	// Name is the reported name, after renaming.
	Name    string
	Reading tally.Reading
	// Number is the reported figure: the mean for an Average, the reduced
	// value otherwise. Meaningless when NoData is set.
	Number float64
	NoData bool
	Size   string
}

func newValue(name string, rd tally.Reading) Value {
	v := Value{Name: name, Reading: rd}

	switch {
	case rd.Empty():
		v.NoData = true
		v.Size = noData
	case rd.Mode == tally.ModeAverage:
		v.Number, _ = rd.Mean()
		v.Size = humanSize(v.Number)
	default:
		v.Number = float64(rd.Value)
		v.Size = humanSize(v.Number)
	}

	return v
}

// humanSize renders v as a binary (KiB, MiB) byte size, truncating any fraction.
func humanSize(v float64) string {
	if v < 0 {
		return "-" + humanize.IBytes(uint64(-v))
	}
	return humanize.IBytes(uint64(v))
}

// MarshalZerologObject writes the record as
//
//	{"_time":12.5,"requests":[300,"300 B"],"latency_ms":[null,"no data"]}
func (rec Record) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("_time", rec.Time)

	for _, v := range rec.Values {
		arr := zerolog.Arr()
		switch {
		case v.NoData:
			arr.Interface(nil)
		case v.Reading.Mode == tally.ModeAverage:
			arr.Float64(v.Number)
		default:
			arr.Int64(v.Reading.Value)
		}
		e.Array(v.Name, arr.Str(v.Size))
	}
}

// Encode writes the record to w as a single line of JSON.
func (rec Record) Encode(w io.Writer) error {
	ew := &errWriter{w: w}
	logger := zerolog.New(ew)
	logger.Log().EmbedObject(rec).Send()
	return ew.err
}

// errWriter keeps the first error of the underlying writer; zerolog itself
// only reports write failures to its global error handler.
type errWriter struct {
	w   io.Writer
	err error
}

func (w *errWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}

	n, err := w.w.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}
