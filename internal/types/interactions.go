package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InteractionType says whether a data interaction passively accepts requests
// or actively reaches out to another service.
type InteractionType string

const (
	InteractionPassive InteractionType = "passive"
	InteractionActive  InteractionType = "active"
)

// UnmarshalJSON lowercases the value; unknown values are kept empty so a
// sloppy model answer degrades to "unclassified" instead of failing the stage.
func (t *InteractionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch v := InteractionType(strings.ToLower(s)); v {
	case InteractionPassive, InteractionActive:
		*t = v
	default:
		*t = ""
	}
	return nil
}

// Directionality describes the data flow of an interaction.
type Directionality string

const (
	RequestResponse Directionality = "request-response"
	OnlySend        Directionality = "only-send"
	OnlyReceive     Directionality = "only-receive"
)

func (d *Directionality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch v := Directionality(strings.ToLower(s)); v {
	case RequestResponse, OnlySend, OnlyReceive:
		*d = v
	default:
		*d = ""
	}
	return nil
}

// DataInteraction is one observed interaction between a service and the
// outside world. Details is a free-form key-value bag (host, port, url,
// queue_name, ...) whose keys depend on the interaction type.
type DataInteraction struct {
	Type            InteractionType `json:"type,omitempty"`
	Directionality  Directionality  `json:"directionality,omitempty"`
	Description     string          `json:"description,omitempty"`
	TargetService   string          `json:"target_service,omitempty"`
	InteractionType string          `json:"interaction_type,omitempty"`
	Details         map[string]any  `json:"interaction_details,omitempty"`
}

// Port returns the "port" detail as a string, or "" if absent.
func (d *DataInteraction) Port() string {
	if d.Details == nil {
		return ""
	}
	v, ok := d.Details["port"]
	if !ok || v == nil {
		return ""
	}
	switch p := v.(type) {
	case string:
		return p
	case float64:
		return fmt.Sprintf("%d", int(p))
	default:
		return fmt.Sprintf("%v", p)
	}
}

func (d DataInteraction) String() string {
	return fmt.Sprintf("Type: %s, Data Direction: %s, Target Service: %s, Interaction Type: %s, Details: %v",
		d.Type, d.Directionality, d.TargetService, d.InteractionType, d.Details)
}

// PortInfo is an open port reported by an analysis, with an optional protocol.
type PortInfo struct {
	Port     json.Number `json:"port"`
	Protocol string      `json:"protocol,omitempty"`
}

// ServiceAnalysis is the base shape shared by the prebuilt and non-prebuilt
// analysis variants. ServiceName is filled in by the pipeline after the model
// answers; the model never sees or sets it.
type ServiceAnalysis struct {
	ServiceName string     `json:"service_name,omitempty"`
	Analysis    string     `json:"analysis"`
	Service     string     `json:"service,omitempty"`
	Type        string     `json:"type,omitempty"`
	Ports       []PortInfo `json:"ports,omitempty"`
}

// PrebuiltAnalysis is the lookup-style classification of a service deployed
// from a third-party image.
type PrebuiltAnalysis struct {
	ServiceAnalysis
}

// NonPrebuiltAnalysis extends the base shape with the interactions and
// languages observed in the service's source.
type NonPrebuiltAnalysis struct {
	ServiceAnalysis
	Interactions []DataInteraction `json:"interactions,omitempty"`
	Languages    []string          `json:"language,omitempty"`
}

// AnalysisRecord is the tagged union persisted per service: exactly one of
// Prebuilt or NonPrebuilt is set, resolved by the service's prebuilt flag
// rather than by structural inference.
type AnalysisRecord struct {
	ServiceName string               `json:"service_name"`
	IsPrebuilt  bool                 `json:"is_prebuilt"`
	Prebuilt    *PrebuiltAnalysis    `json:"prebuilt,omitempty"`
	NonPrebuilt *NonPrebuiltAnalysis `json:"non_prebuilt,omitempty"`
}

// Base returns the common subset of whichever variant is populated.
func (r *AnalysisRecord) Base() *ServiceAnalysis {
	if r.IsPrebuilt && r.Prebuilt != nil {
		return &r.Prebuilt.ServiceAnalysis
	}
	if r.NonPrebuilt != nil {
		return &r.NonPrebuilt.ServiceAnalysis
	}
	return nil
}

// Validate checks the discriminator matches the populated variant.
func (r *AnalysisRecord) Validate() error {
	if r.ServiceName == "" {
		return fmt.Errorf("analysis record has no service name")
	}
	if r.IsPrebuilt && r.Prebuilt == nil {
		return fmt.Errorf("service %q marked prebuilt but has no prebuilt analysis", r.ServiceName)
	}
	if !r.IsPrebuilt && r.NonPrebuilt == nil {
		return fmt.Errorf("service %q marked non-prebuilt but has no non-prebuilt analysis", r.ServiceName)
	}
	return nil
}
