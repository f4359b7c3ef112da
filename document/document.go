/*
Package document provides the concrete inbound document types.

PURPOSE:
  Everything the engine learns arrives as a document: sick-notes,
  applications, income reports, eligibility data, benefit history,
  simulation results, approvals, disbursement outcomes, manual overrides,
  revisions and reminder ticks. Each type implements the benefit package's
  Document contract plus the carrier facets its kind exposes; the engine
  itself never sees these structs.

ROUTING:
  RelevantTo is pure and read-only. Day-carrying documents route by
  employer and span proximity; targeted documents (simulation, approval,
  outcome) route by period id; shared documents (eligibility, history)
  route by lifecycle phase.

WIRE FORMAT:
  api/dto.go decodes a kind-discriminated JSON envelope into these types.
  Parsing beyond that envelope is out of scope here.
*/
package document

import (
	"time"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/timeline"
)

// routingWindowDays bounds how far from a period's span a day-carrying
// document may fall and still be routed to it. It mirrors the statutory
// continuation window; routing just needs the same order of magnitude.
const routingWindowDays = 16

// Base carries the fields every document shares.
type Base struct {
	ID       string    `json:"id"`
	PersonID string    `json:"person_id"`
	Received time.Time `json:"received_at"`
}

func (b Base) DocumentID() string    { return b.ID }
func (b Base) ReceivedAt() time.Time { return b.Received }

// nearPeriod reports whether a span overlaps the period's computed span or
// lies within the routing window of it.
func nearPeriod(p *benefit.BenefitPeriod, span timeline.Period) bool {
	if p.Computed.Start.IsZero() {
		return p.State == benefit.StateStart || p.State == benefit.StateAwaitingSickNote
	}
	return p.Computed.GapTo(span) <= routingWindowDays
}

func employerMatches(p *benefit.BenefitPeriod, employer string) bool {
	return p.Employer == "" || employer == "" || p.Employer == employer
}

// ok and fatal are shorthands for validation results.

func ok(warnings ...string) benefit.ValidationResult {
	return benefit.ValidationResult{Warnings: warnings}
}

func fatal(reason string) benefit.ValidationResult {
	return benefit.ValidationResult{Err: &benefit.RejectionError{Reason: reason}}
}
