/*
engine.go - Run orchestration

PURPOSE:
  Wires the token manager, resolver and applier into the single entry point
  the HTTP layer calls:

    RunSync(ctx, accountID, rows, mode, opts) -> SyncOutcome

  Preview mode stops after classification; apply mode continues into the
  mutation loop. Each run is one sequential pipeline; runs for different
  accounts are fully independent.

ERROR BOUNDARY:
  Credential problems surface as a "reconnect" message, remote outages as a
  "try again" message. Anything unexpected - including panics - is logged
  with full detail and reported to the caller as a generic failure, never
  with remote-call internals.

SEE ALSO:
  - resolver.go, diff.go, apply.go: The pipeline stages
  - disconnect.go: Credential teardown entry points
*/
package engine

import (
	"context"
	"log"
	"time"
)

const (
	reauthMessage  = "Session expired; please reconnect."
	remoteMessage  = "The catalog service is unavailable; please try again shortly."
	genericMessage = "Sync failed unexpectedly; please try again."
)

// Config tunes an Engine. Zero values select production defaults.
type Config struct {
	// CallInterval is the minimum spacing between outbound catalog calls.
	CallInterval time.Duration

	// WebhookSecret signs inbound webhook payloads (HMAC-SHA256).
	WebhookSecret string

	// Pacer overrides the default fixed-interval pacer (tests).
	Pacer Pacer
}

// Engine runs previews, applies and disconnects for all tenants.
type Engine struct {
	store         ConnectionStore
	client        CatalogClient
	tokens        *TokenManager
	pacer         Pacer
	webhookSecret string
}

// New assembles an engine. The pacer is shared between pagination and
// mutation because the remote API budget covers both.
func New(store ConnectionStore, client CatalogClient, oauth OAuthClient, cfg Config) *Engine {
	pacer := cfg.Pacer
	if pacer == nil {
		pacer = NewIntervalPacer(cfg.CallInterval)
	}
	return &Engine{
		store:         store,
		client:        client,
		tokens:        NewTokenManager(store, oauth),
		pacer:         pacer,
		webhookSecret: cfg.WebhookSecret,
	}
}

// RunSync executes one sync run. The outcome's Err field carries a
// user-facing message; it is never a stack trace.
func (e *Engine) RunSync(ctx context.Context, accountID AccountID, rows []SourceRow, mode Mode, opts Options) (out SyncOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: panic during %s run for account %s: %v", mode, accountID, r)
			out = SyncOutcome{Mode: mode, NotFound: []string{}, Err: genericMessage}
		}
	}()

	resolver := &Resolver{Client: e.client, Tokens: e.tokens, Pacer: e.pacer}
	matches, err := resolver.ResolveAll(ctx, accountID, rows, opts)
	if err != nil {
		return e.failedOutcome(mode, accountID, err)
	}

	if mode == ModePreview {
		return previewOutcome(matches)
	}

	applier := &Applier{Client: e.client, Tokens: e.tokens, Pacer: e.pacer}
	return applier.Apply(ctx, accountID, matches, opts)
}

// failedOutcome translates a run-aborting error into a user-facing outcome.
func (e *Engine) failedOutcome(mode Mode, accountID AccountID, err error) SyncOutcome {
	out := SyncOutcome{Mode: mode, NotFound: []string{}}
	switch {
	case IsReauthRequired(err):
		log.Printf("engine: account %s needs reconnect: %v", accountID, err)
		out.Err = reauthMessage
	case IsRemoteUnavailable(err):
		log.Printf("engine: remote unavailable for account %s: %v", accountID, err)
		out.Err = remoteMessage
	default:
		log.Printf("engine: run failed for account %s: %v", accountID, err)
		out.Err = genericMessage
	}
	return out
}

// previewOutcome tallies classifications without mutating anything.
func previewOutcome(matches []MatchResult) SyncOutcome {
	out := SyncOutcome{Mode: ModePreview, NotFound: []string{}}
	for _, m := range matches {
		if !m.Found() {
			out.NotFound = append(out.NotFound, m.Row.Identifier)
			continue
		}
		if m.Kind == MatchFuzzy {
			out.FuzzyMatched++
		}

		change := Classify(m)
		switch change {
		case ChangeIncrease:
			out.Increases++
		case ChangeDecrease:
			out.Decreases++
		case ChangeUnchanged:
			out.Unchanged++
		}
		out.Details = append(out.Details, ChangeDetail{
			Identifier:  m.Row.Identifier,
			EntryName:   m.Entry.DisplayName,
			CurrentCost: effectiveCurrentCost(m.Entry),
			NewCost:     m.Row.ProposedCost,
			Change:      change,
		})
	}
	return out
}
