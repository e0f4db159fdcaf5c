package service

import (
	"context"
	"encoding/json"
	"strings"

	"wagateway/internal/errors"
	"wagateway/internal/models"
	"wagateway/internal/registry"

	"github.com/sirupsen/logrus"
)

const collectionAutoReplyRules = "autoreply_rules"

// AutoReplyRules is the token-scoped keyword rule store consulted for
// local auto-replies. Rules only fire when webhook auto-reply is
// disabled for the session, so exactly one reply source is active.
type AutoReplyRules struct {
	store  registry.DocumentStore
	logger *logrus.Logger
}

// NewAutoReplyRules creates the rule store
func NewAutoReplyRules(store registry.DocumentStore, logger *logrus.Logger) *AutoReplyRules {
	return &AutoReplyRules{store: store, logger: logger}
}

// List returns the rules for a token; missing or corrupt documents
// yield an empty list
func (r *AutoReplyRules) List(ctx context.Context, token string) ([]models.AutoReplyRule, error) {
	body, err := r.store.Get(ctx, collectionAutoReplyRules, token)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []models.AutoReplyRule{}, nil
	}

	var rules []models.AutoReplyRule
	if err := json.Unmarshal(body, &rules); err != nil {
		r.logger.WithField("token", token).WithError(err).
			Warn("Corrupt auto-reply rules treated as empty")
		return []models.AutoReplyRule{}, nil
	}
	return rules, nil
}

// Set overwrites all rules for a token
func (r *AutoReplyRules) Set(ctx context.Context, token string, rules []models.AutoReplyRule) error {
	if token == "" {
		return errors.New(errors.ErrCodeInvalidInput, "token cannot be empty")
	}
	body, err := json.Marshal(rules)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode auto-reply rules")
	}
	return r.store.Put(ctx, collectionAutoReplyRules, token, body)
}

// Delete removes all rules for a token
func (r *AutoReplyRules) Delete(ctx context.Context, token string) error {
	return r.store.Delete(ctx, collectionAutoReplyRules, token)
}

// Lookup returns the response of the first rule whose keyword occurs in
// the message text, case-insensitively
func (r *AutoReplyRules) Lookup(ctx context.Context, token, text string) (string, bool) {
	if token == "" || strings.TrimSpace(text) == "" {
		return "", false
	}

	rules, err := r.List(ctx, token)
	if err != nil {
		errors.LogWarn(r.logger, err, "Failed to load auto-reply rules",
			logrus.Fields{"token": token})
		return "", false
	}

	haystack := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range rules {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, keyword) {
			return rule.Response, true
		}
	}
	return "", false
}
