package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// ResponseGateway serialises acceptances of one-to-one requests: the first claim wins
type ResponseGateway struct {
	Store store.Store
	Clock Clock
}

// TryClaim writes the accepted Response and flips the request to active in one transaction
func (g *ResponseGateway) TryClaim(ctx context.Context, requestID, responderID, message string) (models.Request, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var r models.Request
		if err := g.Store.Get(ctx, store.Requests, requestID, &r); err != nil {
			return models.Request{}, notFound(err)
		}

		now := g.Clock.Now()
		d, err := lifecycle.Claim(r, responderID, now)
		if err != nil {
			return models.Request{}, err
		}

		resp := models.Response{
			ResponseID:  models.ResponseKey(requestID, responderID),
			RequestID:   requestID,
			ResponderID: responderID,
			Status:      models.ResponseAccepted,
			Message:     message,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = g.Store.Transact(ctx, []store.TxOp{
			store.PutIfAbsent(store.Responses, resp),
			store.UpdateIf(store.Requests, requestID, d.Patch, d.Expect),
		})
		if err == nil {
			var claimed models.Request
			if err := g.Store.Get(ctx, store.Requests, requestID, &claimed); err != nil {
				return models.Request{}, fmt.Errorf("failed to reload claimed request: %w", err)
			}
			log.Printf("✅ Request %s claimed by %s", requestID, responderID)
			return claimed, nil
		}

		var canceled *store.TxCanceledError
		if !errors.As(err, &canceled) {
			return models.Request{}, fmt.Errorf("failed to claim request: %w", err)
		}
		if canceled.FailedAt(0) {
			return models.Request{}, lifecycle.ErrAlreadyResponded
		}
		log.Printf("🔄 Claim on %s lost a race, re-reading (attempt %d)", requestID, attempt+1)
	}
	return models.Request{}, ErrConflict
}

// Release reverses a claim whose meeting could not be provisioned
func (g *ResponseGateway) Release(ctx context.Context, claimed models.Request, responderID string) error {
	d := lifecycle.Release(claimed, responderID, g.Clock.Now())
	err := g.Store.Transact(ctx, []store.TxOp{
		store.UpdateIf(store.Requests, claimed.RequestID, d.Patch, d.Expect),
		store.DeleteIf(store.Responses, models.ResponseKey(claimed.RequestID, responderID),
			store.Conditions{store.Eq("status", models.ResponseAccepted)}),
	})
	if err != nil {
		log.Printf("❌ Failed to release claim on %s: %v", claimed.RequestID, err)
		return fmt.Errorf("failed to release claim: %w", err)
	}
	log.Printf("🔄 Claim on %s by %s released", claimed.RequestID, responderID)
	return nil
}
