package trail

import (
	"strconv"

	"trailchain/core/events"
	"trailchain/core/types"
)

const (
	// EventTypeSeriesCreated is emitted when a creator registers a new series.
	EventTypeSeriesCreated = "trail.series.created"
	// EventTypeCopyMinted is emitted for every issued copy, on both the
	// creator-mint and the purchase path.
	EventTypeCopyMinted = "trail.copy.minted"
	// EventTypeCopyTransferred is emitted when a copy changes owner.
	EventTypeCopyTransferred = "trail.copy.transferred"
	// EventTypeMintableToggled is emitted when buyer minting is enabled or
	// disabled for a series.
	EventTypeMintableToggled = "trail.series.mintable"
	// EventTypeParamsUpdated is emitted when the admin bridge changes a
	// global ledger parameter.
	EventTypeParamsUpdated = "trail.params.updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// SeriesCreatedEvent returns the structured payload announcing a new series.
func SeriesCreatedEvent(seriesID, creator, price, fee string, total uint64) *types.Event {
	return &types.Event{
		Type: EventTypeSeriesCreated,
		Attributes: map[string]string{
			"seriesId": seriesID,
			"creator":  creator,
			"price":    price,
			"fee":      fee,
			"total":    strconv.FormatUint(total, 10),
		},
	}
}

// CopyMintedEvent carries the mint notification. The series price rides
// along for observability on both mint paths.
func CopyMintedEvent(copyID, seriesID, receiver, price string) *types.Event {
	return &types.Event{
		Type: EventTypeCopyMinted,
		Attributes: map[string]string{
			"copyId":   copyID,
			"seriesId": seriesID,
			"receiver": receiver,
			"price":    price,
		},
	}
}

// CopyTransferredEvent captures an ownership move between two accounts.
func CopyTransferredEvent(copyID, from, to, memo string) *types.Event {
	return &types.Event{
		Type: EventTypeCopyTransferred,
		Attributes: map[string]string{
			"copyId": copyID,
			"from":   from,
			"to":     to,
			"memo":   memo,
		},
	}
}

// MintableToggledEvent captures a mint-eligibility flip for a series.
func MintableToggledEvent(seriesID, caller string, mintable bool) *types.Event {
	enabled := "false"
	if mintable {
		enabled = "true"
	}
	return &types.Event{
		Type: EventTypeMintableToggled,
		Attributes: map[string]string{
			"seriesId": seriesID,
			"caller":   caller,
			"enabled":  enabled,
		},
	}
}

// ParamsUpdatedEvent captures an admin change to a global parameter.
func ParamsUpdatedEvent(field, value string) *types.Event {
	return &types.Event{
		Type: EventTypeParamsUpdated,
		Attributes: map[string]string{
			"field": field,
			"value": value,
		},
	}
}
