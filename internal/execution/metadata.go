package execution

import "fmt"

// Purpose describes why an execution was started.
type Purpose string

const (
	PurposeOther     Purpose = "other"
	PurposeStatement Purpose = "statement"
	PurposeTuples    Purpose = "tuples"
	PurposeCells     Purpose = "cells"
)

// Metadata is the observability payload attached to an execution.
// It is a value and never changes after the execution is created.
type Metadata struct {
	Component string
	Message   string
	Purpose   Purpose
	Count     int
}

// EmptyMetadata is used when a caller has nothing to report.
var EmptyMetadata = Metadata{Purpose: PurposeOther}

// NewMetadata builds a Metadata value.
func NewMetadata(component, message string, purpose Purpose, count int) Metadata {
	if purpose == "" {
		purpose = PurposeOther
	}
	return Metadata{
		Component: component,
		Message:   message,
		Purpose:   purpose,
		Count:     count,
	}
}

func (m Metadata) String() string {
	if m.Component == "" && m.Message == "" {
		return string(m.Purpose)
	}
	return fmt.Sprintf("%s: %s (purpose=%s, count=%d)", m.Component, m.Message, m.Purpose, m.Count)
}
