package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

// UpsertHotspotUser converges a hotspot user entry. The profile must exist
// on the router; a missing profile is a semantic failure the caller should
// surface rather than retry.
func (g *Gateway) UpsertHotspotUser(ctx context.Context, spec HotspotUserSpec) error {
	if err := g.ensureProfileExists(ctx, spec.Profile); err != nil {
		return err
	}

	id, err := g.findHotspotUserID(ctx, spec.Username)
	if err != nil {
		return err
	}

	if id != "" {
		words := []string{
			"/ip/hotspot/user/set",
			attrWord(".id", id),
			attrWord("profile", spec.Profile),
			attrWord("comment", spec.Comment),
			attrWord("disabled", "no"),
		}
		if spec.Password != "" {
			words = append(words, attrWord("password", spec.Password))
		}
		if spec.LimitBytes > 0 {
			words = append(words, attrWord("limit-bytes-total", fmt.Sprintf("%d", spec.LimitBytes)))
		}
		_, err = g.runWithRetry(ctx, words...)
		return err
	}

	words := []string{
		"/ip/hotspot/user/add",
		attrWord("name", spec.Username),
		attrWord("profile", spec.Profile),
		attrWord("comment", spec.Comment),
	}
	if spec.Password != "" {
		words = append(words, attrWord("password", spec.Password))
	}
	if spec.Server != "" {
		words = append(words, attrWord("server", spec.Server))
	}
	if spec.LimitBytes > 0 {
		words = append(words, attrWord("limit-bytes-total", fmt.Sprintf("%d", spec.LimitBytes)))
	}

	// Add races against a concurrent add for the same name; on the duplicate
	// trap fall back to set so the converged state wins either way.
	_, err = g.run(ctx, words...)
	if err != nil && strings.Contains(err.Error(), "already have user") {
		return g.SetHotspotUserProfile(ctx, spec.Username, spec.Profile)
	}
	return err
}

// DeleteHotspotUser removes a hotspot user and verifies it is gone. The
// verify loop retries briefly because router removal is not always visible
// to an immediate re-read.
func (g *Gateway) DeleteHotspotUser(ctx context.Context, username string) error {
	id, err := g.findHotspotUserID(ctx, username)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}

	if _, err := g.runWithRetry(ctx,
		"/ip/hotspot/user/remove",
		attrWord(".id", id),
	); err != nil {
		return err
	}

	verify := func() (struct{}, error) {
		remaining, err := g.findHotspotUserID(ctx, username)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if remaining != "" {
			return struct{}{}, fmt.Errorf("hotspot user %s still present", username)
		}
		return struct{}{}, nil
	}
	_, err = backoff.Retry(ctx, verify,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(4))
	return err
}

// SetHotspotUserProfile moves an existing hotspot user to another profile.
func (g *Gateway) SetHotspotUserProfile(ctx context.Context, username, profile string) error {
	if err := g.ensureProfileExists(ctx, profile); err != nil {
		return err
	}

	id, err := g.findHotspotUserID(ctx, username)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.NewNotFound("hotspot user not found")
	}

	_, err = g.runWithRetry(ctx,
		"/ip/hotspot/user/set",
		attrWord(".id", id),
		attrWord("profile", profile),
	)
	return err
}

func (g *Gateway) findHotspotUserID(ctx context.Context, username string) (string, error) {
	reply, err := g.run(ctx,
		"/ip/hotspot/user/print",
		queryWord("name", username),
		"=.proplist=.id",
	)
	if err != nil {
		return "", err
	}
	if len(reply.Re) == 0 {
		return "", nil
	}
	return reply.Re[0].Map[".id"], nil
}

func (g *Gateway) ensureProfileExists(ctx context.Context, profile string) error {
	reply, err := g.run(ctx,
		"/ip/hotspot/user/profile/print",
		queryWord("name", profile),
		"=.proplist=.id",
	)
	if err != nil {
		return err
	}
	if len(reply.Re) == 0 {
		return errors.NewRouterSemantic(
			fmt.Sprintf("hotspot profile %q does not exist on the router", profile), nil)
	}
	return nil
}
