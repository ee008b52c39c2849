// Package registry resolves resource ownership against the CMS access
// lists, which the main application mirrors into the shared cache.
package registry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"preview-lab/contract"
	"preview-lab/domain"
	"preview-lab/errors"
)

// Key layout written by the CMS on every ACL change:
//
//	acl:owner:{kind}:{id}          -> subject id of the owner
//	acl:collaborators:{kind}:{id}  -> JSON array of subject ids
//	acl:grant:{kind}:{id}:{sub}    -> "1" while an access grant is active
type CacheAccessRegistry struct {
	cache contract.Cache
	log   *slog.Logger
}

func NewCacheAccessRegistry(cache contract.Cache, log *slog.Logger) *CacheAccessRegistry {
	return &CacheAccessRegistry{cache: cache, log: log}
}

func (r *CacheAccessRegistry) IsOwner(ctx context.Context, kind domain.ResourceKind,
	resourceID, subjectID string) (bool, error) {
	key := fmt.Sprintf("acl:owner:%s:%s", kind, resourceID)
	owner, err := r.cache.Get(ctx, key)
	if stderrors.Is(err, errors.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("owner lookup for %s: %w", key, err)
	}
	return owner == subjectID, nil
}

func (r *CacheAccessRegistry) IsCollaborator(ctx context.Context, kind domain.ResourceKind,
	resourceID, subjectID string) (bool, error) {
	key := fmt.Sprintf("acl:collaborators:%s:%s", kind, resourceID)
	raw, err := r.cache.Get(ctx, key)
	if stderrors.Is(err, errors.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("collaborator lookup for %s: %w", key, err)
	}

	var collaborators []string
	if err := json.Unmarshal([]byte(raw), &collaborators); err != nil {
		// A malformed list is an ACL we cannot trust.
		r.log.Warn("Malformed collaborator list", "key", key, "error", err)
		return false, fmt.Errorf("collaborator list for %s: %w", key, err)
	}
	for _, id := range collaborators {
		if id == subjectID {
			return true, nil
		}
	}
	return false, nil
}

func (r *CacheAccessRegistry) HasGrantedAccess(ctx context.Context, kind domain.ResourceKind,
	resourceID, subjectID string) (bool, error) {
	key := fmt.Sprintf("acl:grant:%s:%s:%s", kind, resourceID, subjectID)
	_, err := r.cache.Get(ctx, key)
	if stderrors.Is(err, errors.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("grant lookup for %s: %w", key, err)
	}
	return true, nil
}
