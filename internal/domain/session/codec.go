package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/miradorhq/sessiond/internal/domain/principal"
)

// EncodeRecord converts a record into the four-key string layout shared by
// every store backend. Timestamps are epoch milliseconds in UTC.
func EncodeRecord(record *Record) (map[string]string, error) {
	if record == nil {
		return nil, fmt.Errorf("encode record: nil record")
	}
	snapshot, err := json.Marshal(record.Principal)
	if err != nil {
		return nil, fmt.Errorf("encode principal snapshot: %w", err)
	}
	return map[string]string{
		KeyToken:          record.Token,
		KeyPrincipal:      string(snapshot),
		KeyAbsoluteExpiry: strconv.FormatInt(record.Clock.AbsoluteExpiry.UnixMilli(), 10),
		KeyLastActivity:   strconv.FormatInt(record.Clock.LastActivity.UnixMilli(), 10),
	}, nil
}

// DecodeRecord rebuilds a record from the four-key layout.
//
// Absence semantics: if none of the four keys are present, the slot is
// absent and (nil, nil) is returned. Any partially-present key set,
// unparsable principal JSON, or non-numeric timestamp is ErrCorruptedRecord:
// partial records never survive a read.
func DecodeRecord(values map[string]string) (*Record, error) {
	tok, hasToken := values[KeyToken]
	snap, hasSnapshot := values[KeyPrincipal]
	expiry, hasExpiry := values[KeyAbsoluteExpiry]
	activity, hasActivity := values[KeyLastActivity]

	if !hasToken && !hasSnapshot && !hasExpiry && !hasActivity {
		return nil, nil
	}
	if !hasToken || !hasSnapshot || !hasExpiry || !hasActivity {
		return nil, fmt.Errorf("%w: partial key set", ErrCorruptedRecord)
	}
	if tok == "" {
		return nil, fmt.Errorf("%w: empty token", ErrCorruptedRecord)
	}

	var p principal.Principal
	if err := json.Unmarshal([]byte(snap), &p); err != nil {
		return nil, fmt.Errorf("%w: unparsable principal snapshot: %v", ErrCorruptedRecord, err)
	}

	expiryMs, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad absolute expiry %q", ErrCorruptedRecord, expiry)
	}
	activityMs, err := strconv.ParseInt(activity, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad last activity %q", ErrCorruptedRecord, activity)
	}

	return &Record{
		Token:     tok,
		Principal: p,
		Clock: Clock{
			AbsoluteExpiry: time.UnixMilli(expiryMs).UTC(),
			LastActivity:   time.UnixMilli(activityMs).UTC(),
		},
	}, nil
}
