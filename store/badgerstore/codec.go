package badgerstore

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/landofcash/aptoosh-sub000/store"
)

// encMode uses Core Deterministic Encoding so the same record always
// produces identical bytes on disk.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("badgerstore: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("badgerstore: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeRecord(rec *store.Record) ([]byte, error) {
	return encMode.Marshal(rec)
}

func decodeRecord(data []byte) (*store.Record, error) {
	var rec store.Record
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
