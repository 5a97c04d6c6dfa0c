package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Trace files are a plain sequence of definite-length CBOR maps, one per
// Event. A record that repeats a key is corrupt and is rejected.
var (
	traceEncMode = mustEncMode(cbor.EncOptions{
		Sort: cbor.SortCoreDeterministic,
		Time: cbor.TimeRFC3339Nano,
	})
	traceDecMode = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic("log: trace encoder: " + err.Error())
	}
	return em
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic("log: trace decoder: " + err.Error())
	}
	return dm
}

func newTraceEncoder(w io.Writer) *cbor.Encoder { return traceEncMode.NewEncoder(w) }

func newTraceDecoder(r io.Reader) *cbor.Decoder { return traceDecMode.NewDecoder(r) }

// decodeEvent decodes a single trace record.
func decodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := traceDecMode.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
