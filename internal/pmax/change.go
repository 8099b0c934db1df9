package pmax

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/lrdigital/pmax-steward/internal/errors"
)

// ChangeKind identifies a change request variant.
type ChangeKind string

const (
	// ChangeKindBudgetAdjustment adjusts the campaign daily budget.
	ChangeKindBudgetAdjustment ChangeKind = "budget_adjustment"
	// ChangeKindTargetCPAAdjustment adjusts the target CPA bid value.
	ChangeKindTargetCPAAdjustment ChangeKind = "target_cpa_adjustment"
	// ChangeKindAssetGroup modifies asset group composition or status.
	ChangeKindAssetGroup ChangeKind = "asset_group_modification"
	// ChangeKindGeoTargeting modifies campaign geo targeting.
	ChangeKindGeoTargeting ChangeKind = "geo_targeting_modification"
)

var (
	// ErrInvalidChangeKind indicates a change payload with an unknown kind tag.
	ErrInvalidChangeKind = apperrors.New(apperrors.CodeChangeInvalidKind, "change kind is not recognized")
	// ErrEmptyChangePayload indicates a change payload with no body.
	ErrEmptyChangePayload = apperrors.New(apperrors.CodeChangeEmptyPayload, "change payload is required")
)

// ChangeRequest is the closed set of campaign change variants. All variants
// are "levers" subject to the one-change-per-week cadence rule.
type ChangeRequest interface {
	Kind() ChangeKind
	isChangeRequest()
}

// BudgetAdjustment proposes a new campaign daily budget.
type BudgetAdjustment struct {
	OldDailyBudget float64 `json:"old_daily_budget"`
	NewDailyBudget float64 `json:"new_daily_budget"`
}

// Kind identifies the change variant.
func (BudgetAdjustment) Kind() ChangeKind { return ChangeKindBudgetAdjustment }

func (BudgetAdjustment) isChangeRequest() {}

// TargetCPAAdjustment proposes a new target CPA bid value.
type TargetCPAAdjustment struct {
	OldTargetCPA float64 `json:"old_target_cpa"`
	NewTargetCPA float64 `json:"new_target_cpa"`
}

// Kind identifies the change variant.
func (TargetCPAAdjustment) Kind() ChangeKind { return ChangeKindTargetCPAAdjustment }

func (TargetCPAAdjustment) isChangeRequest() {}

// AssetGroupAction describes what an asset group change does.
type AssetGroupAction string

const (
	// AssetGroupActionUpdate replaces the asset inventory of one group.
	AssetGroupActionUpdate AssetGroupAction = "update"
	// AssetGroupActionPause pauses one asset group.
	AssetGroupActionPause AssetGroupAction = "pause"
	// AssetGroupActionPauseAll pauses every asset group.
	AssetGroupActionPauseAll AssetGroupAction = "pause_all"
	// AssetGroupActionEnable enables one asset group.
	AssetGroupActionEnable AssetGroupAction = "enable"
)

// AssetGroupChange proposes a modification to one asset group. For update
// actions, Proposed carries the resulting asset counts for the group.
type AssetGroupChange struct {
	Action    AssetGroupAction    `json:"action"`
	GroupName string              `json:"group_name"`
	Proposed  *AssetGroupSnapshot `json:"proposed,omitempty"`
}

// Kind identifies the change variant.
func (AssetGroupChange) Kind() ChangeKind { return ChangeKindAssetGroup }

func (AssetGroupChange) isChangeRequest() {}

// GeoTargetingChange proposes a geo targeting modification. Exclusions carries
// the presence exclusion country list that would result from the change.
type GeoTargetingChange struct {
	OldType    GeoTargetingType `json:"old_type"`
	NewType    GeoTargetingType `json:"new_type"`
	Exclusions []string         `json:"exclusions"`
}

// Kind identifies the change variant.
func (GeoTargetingChange) Kind() ChangeKind { return ChangeKindGeoTargeting }

func (GeoTargetingChange) isChangeRequest() {}

type changeEnvelope struct {
	Kind    ChangeKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalChange encodes a change request with its kind tag for storage.
func MarshalChange(change ChangeRequest) ([]byte, error) {
	if change == nil {
		return nil, ErrEmptyChangePayload
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("marshal change payload: %w", err)
	}
	raw, err := json.Marshal(changeEnvelope{Kind: change.Kind(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal change envelope: %w", err)
	}
	return raw, nil
}

// UnmarshalChange decodes a stored change request back into its variant.
func UnmarshalChange(raw []byte) (ChangeRequest, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyChangePayload
	}
	var envelope changeEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal change envelope: %w", err)
	}

	switch envelope.Kind {
	case ChangeKindBudgetAdjustment:
		var change BudgetAdjustment
		if err := json.Unmarshal(envelope.Payload, &change); err != nil {
			return nil, fmt.Errorf("unmarshal budget adjustment: %w", err)
		}
		return change, nil
	case ChangeKindTargetCPAAdjustment:
		var change TargetCPAAdjustment
		if err := json.Unmarshal(envelope.Payload, &change); err != nil {
			return nil, fmt.Errorf("unmarshal target cpa adjustment: %w", err)
		}
		return change, nil
	case ChangeKindAssetGroup:
		var change AssetGroupChange
		if err := json.Unmarshal(envelope.Payload, &change); err != nil {
			return nil, fmt.Errorf("unmarshal asset group change: %w", err)
		}
		return change, nil
	case ChangeKindGeoTargeting:
		var change GeoTargetingChange
		if err := json.Unmarshal(envelope.Payload, &change); err != nil {
			return nil, fmt.Errorf("unmarshal geo targeting change: %w", err)
		}
		return change, nil
	default:
		return nil, apperrors.WithMetadata(
			apperrors.CodeChangeInvalidKind,
			fmt.Sprintf("change kind is not recognized: %s", envelope.Kind),
			map[string]string{"Kind": string(envelope.Kind)},
		)
	}
}
