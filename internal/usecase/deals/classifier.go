// Package deals classifies CRM deals into mutually exclusive outcome
// categories for the digest's sales section.
package deals

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"discord-digest-bot/internal/domain"
)

// Classifier partitions recent deals by outcome. A nil source means the CRM
// integration is disabled and every result is empty.
type Classifier struct {
	source domain.DealSource
	log    zerolog.Logger
}

// NewClassifier creates a classifier over the given CRM reads.
func NewClassifier(source domain.DealSource, log zerolog.Logger) *Classifier {
	return &Classifier{source: source, log: log}
}

// Classify visits every deal once and applies the decision table in strict
// precedence order: stale skip, converted, churned/lost, to-convert, then
// the title heuristics. A separate value-delta pass over each candidate
// deal's change history contributes upgrades and downgrades; the two passes
// are merged de-duplicated by deal ID, first pass wins.
//
// Any CRM fault degrades to empty results and never escapes this boundary.
func (c *Classifier) Classify(ctx context.Context, window domain.Window) domain.DealReport {
	var report domain.DealReport
	if c.source == nil {
		return report
	}

	allDeals, err := c.source.ListDeals(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("deals: listing failed, skipping CRM section")
		return report
	}

	seenChanges := make(map[int64]bool)
	for _, deal := range allDeals {
		if !hasRecentUpdate(deal, window) || deal.WonTime == nil || !deal.WonTime.Before(window.Start) {
			continue
		}
		entry, direction := c.valueChange(ctx, deal, window)
		switch direction {
		case changeDown:
			report.Downgrades = append(report.Downgrades, entry)
			seenChanges[deal.ID] = true
		case changeUp:
			report.Upgrades = append(report.Upgrades, entry)
			seenChanges[deal.ID] = true
		}
	}

	for _, deal := range allDeals {
		if deal.UpdateTime.IsZero() {
			continue
		}
		// Stale and already settled: irrelevant this cycle.
		if deal.UpdateTime.Before(window.Start) && deal.Status != domain.DealStatusOpen {
			continue
		}

		title := strings.ToLower(deal.Title)
		switch {
		case deal.Status == domain.DealStatusWon:
			if deal.WonTime != nil && !deal.WonTime.Before(window.Start) {
				report.Converted = append(report.Converted, domain.DealEntry{DealID: deal.ID, Company: deal.Company, Value: deal.Value})
			}
		case deal.Status == domain.DealStatusLost:
			if deal.LostTime == nil || deal.LostTime.Before(window.Start) {
				continue
			}
			entry := domain.DealEntry{DealID: deal.ID, Company: deal.Company, Value: deal.Value, Reason: deal.LostReason}
			if c.isChurn(ctx, deal, title) {
				report.Churned = append(report.Churned, entry)
			} else {
				report.Lost = append(report.Lost, entry)
			}
		case deal.Status == domain.DealStatusOpen:
			report.ToConvert = append(report.ToConvert, domain.DealEntry{DealID: deal.ID, Company: deal.Company})
		case strings.Contains(title, "upgrade"):
			if !seenChanges[deal.ID] {
				report.Upgrades = append(report.Upgrades, domain.DealEntry{DealID: deal.ID, Company: deal.Company, Value: deal.Value})
				seenChanges[deal.ID] = true
			}
		case strings.Contains(title, "downgrade"):
			if !seenChanges[deal.ID] {
				report.Downgrades = append(report.Downgrades, domain.DealEntry{DealID: deal.ID, Company: deal.Company, Value: deal.Value})
				seenChanges[deal.ID] = true
			}
		case strings.Contains(title, "trial") && deal.Status == domain.DealStatusOpen:
			report.NewTrials = append(report.NewTrials, domain.DealEntry{DealID: deal.ID, Company: deal.Company})
		}
	}

	orgs, err := c.source.ListNewOrganizations(ctx, window)
	if err != nil {
		c.log.Warn().Err(err).Msg("deals: organization listing failed")
	} else {
		report.NewOrganizations = orgs
	}

	return report
}

// TotalWonValue sums the value of every won deal regardless of window,
// rounded to the nearest currency unit. Faults degrade to zero.
func (c *Classifier) TotalWonValue(ctx context.Context) int {
	if c.source == nil {
		return 0
	}
	won, err := c.source.ListWonDeals(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("deals: won deal listing failed")
		return 0
	}
	var total float64
	for _, deal := range won {
		total += deal.Value
	}
	return int(math.Round(total))
}

// isChurn distinguishes a previously won deal from one that was never won.
// A "churn" title settles it without a history lookup; when both signals
// exist the title wins.
func (c *Classifier) isChurn(ctx context.Context, deal domain.Deal, lowerTitle string) bool {
	if strings.Contains(lowerTitle, "churn") {
		return true
	}
	return c.everWon(ctx, deal.ID)
}

func (c *Classifier) everWon(ctx context.Context, dealID int64) bool {
	flow, err := c.source.DealFlow(ctx, dealID)
	if err != nil {
		c.log.Warn().Err(err).Int64("deal", dealID).Msg("deals: flow lookup failed")
		return false
	}
	for _, entry := range flow {
		if entry.ObjectType == "dealStatus" && entry.ToValue == "won" {
			return true
		}
		if entry.OldValue == "won" {
			return true
		}
	}
	return false
}

type changeDirection int

const (
	changeNone changeDirection = iota
	changeUp
	changeDown
)

// valueChange finds the first in-window value change of a deal's history.
// Zero-delta entries are skipped, not terminal: a later change still counts.
func (c *Classifier) valueChange(ctx context.Context, deal domain.Deal, window domain.Window) (domain.DealEntry, changeDirection) {
	flow, err := c.source.DealFlow(ctx, deal.ID)
	if err != nil {
		c.log.Warn().Err(err).Int64("deal", deal.ID).Msg("deals: flow lookup failed")
		return domain.DealEntry{}, changeNone
	}
	for _, entry := range flow {
		if entry.Object != "dealChange" || entry.Timestamp.Before(window.Start) {
			continue
		}
		oldValue := parseValue(entry.OldValue)
		newValue := parseValue(entry.NewValue)
		delta := newValue - oldValue
		result := domain.DealEntry{
			DealID:   deal.ID,
			Title:    deal.Title,
			Company:  deal.Company,
			Value:    delta,
			OldValue: oldValue,
			NewValue: newValue,
		}
		if delta < 0 {
			return result, changeDown
		}
		if delta > 0 {
			return result, changeUp
		}
	}
	return domain.DealEntry{}, changeNone
}

func hasRecentUpdate(deal domain.Deal, window domain.Window) bool {
	return !deal.UpdateTime.IsZero() && !deal.UpdateTime.Before(window.Start)
}

func parseValue(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
