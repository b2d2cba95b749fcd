package portal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vlsemenov/samaraenergo/internal/odata"
)

// NoteSourceMobile identifies the mobile personal-account submission
// channel.
const NoteSourceMobile = "920"

// maxReadings is the register limit per device: day, night, half-peak.
const maxReadings = 3

// NewSubmission builds the write payload for one to three register
// readings of a device. Order assigns the register: the first value goes
// to register "001", the second to "002", the third to "003". The first
// reading is primary; the rest are attached as its dependents here, at
// construction, and the value is never mutated afterwards. A zero capture
// time means now in the local zone.
func NewSubmission(deviceID string, at time.Time, values ...decimal.Decimal) (MeterReadingResult, error) {
	if len(values) < 1 || len(values) > maxReadings {
		return MeterReadingResult{}, &ArgumentError{
			Message: fmt.Sprintf("want 1 to %d readings, got %d", maxReadings, len(values)),
		}
	}
	if at.IsZero() {
		at = time.Now()
	}

	readings := make([]MeterReadingResult, len(values))
	for i, v := range values {
		readings[i] = MeterReadingResult{
			DependentMeterReadingResults: []MeterReadingResult{},
			ReadingValue: ReadingValue{
				RegisterID:      fmt.Sprintf("%03d", i+1),
				ReadingResult:   v,
				ReadingDateTime: odata.NewDateTime(at),
			},
			DeviceID:           deviceID,
			MeterReadingNoteID: NoteSourceMobile,
		}
	}

	primary := readings[0]
	primary.DependentMeterReadingResults = readings[1:]
	return primary, nil
}
