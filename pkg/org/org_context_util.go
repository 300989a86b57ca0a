package org

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const OrgKey contextKey = "org"

var ErrNoOrg = errors.New("organization not found")

// CurrentId retrieves the current organization's ID from the context.
// Returns ErrNoOrg if no organization is present in context.
func CurrentId(ctx context.Context) (int64, error) {
	orgId, ok := ctx.Value(OrgKey).(int64)
	if !ok {
		log.Trace("organization not found in context")
		return 0, ErrNoOrg
	}
	return orgId, nil
}

func WithOrg(ctx context.Context, orgId int64) context.Context {
	return context.WithValue(ctx, OrgKey, orgId)
}
