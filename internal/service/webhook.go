package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/webhooks/v6/github"
	"github.com/google/uuid"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/port"
)

// pushFields is what a push payload must provide to become a WebhookEvent.
type pushFields struct {
	fullName string
	cloneURL string
	ref      string
	before   string
	after    string
}

// pushEnvelope is the minimal push payload shape shared by GitHub and Gitee.
type pushEnvelope struct {
	Ref        string `json:"ref"`
	Before     string `json:"before"`
	After      string `json:"after"`
	Repository struct {
		FullName   string `json:"full_name"`
		CloneURL   string `json:"clone_url"`
		GitHTTPURL string `json:"git_http_url"`
	} `json:"repository"`
}

// Normalize turns a push payload from platform into a WebhookEvent.
// An absent or empty-object payload yields port.ErrEmptyPayload. A payload
// without repository.full_name, before or after yields
// port.ErrMalformedPayload. before and after are forwarded as given.
func Normalize(platform domain.Platform, payload []byte) (*domain.WebhookEvent, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, port.ErrEmptyPayload
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrMalformedPayload, err)
	}
	if len(top) == 0 {
		return nil, port.ErrEmptyPayload
	}

	var (
		f   pushFields
		err error
	)
	switch platform {
	case domain.PlatformGitHub:
		f, err = decodeGitHubPush(payload)
	case domain.PlatformGitee:
		f, err = decodeEnvelope(payload)
	default:
		return nil, fmt.Errorf("%w: unsupported platform %q", port.ErrMalformedPayload, platform)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrMalformedPayload, err)
	}

	if f.fullName == "" {
		return nil, fmt.Errorf("%w: repository.full_name missing", port.ErrMalformedPayload)
	}
	id, ok := domain.ParseIdentity(platform.Host() + "/" + strings.Trim(f.fullName, "/"))
	if !ok {
		return nil, fmt.Errorf("%w: repository.full_name %q is not owner/name", port.ErrMalformedPayload, f.fullName)
	}
	if f.before == "" || f.after == "" {
		return nil, fmt.Errorf("%w: before and after are required", port.ErrMalformedPayload)
	}

	return &domain.WebhookEvent{
		ID:         uuid.NewString(),
		Platform:   platform,
		RepoURL:    id.String(),
		Identity:   id,
		CloneURL:   f.cloneURL,
		Ref:        f.ref,
		Before:     f.before,
		After:      f.after,
		ReceivedAt: time.Now().UTC(),
		RawPayload: append(json.RawMessage(nil), payload...),
	}, nil
}

// decodeGitHubPush decodes into the typed GitHub push payload. Payloads that
// carry a field of an unexpected type (older or proxied deliveries) fall
// back to the minimal envelope.
func decodeGitHubPush(payload []byte) (pushFields, error) {
	var pl github.PushPayload
	if err := json.Unmarshal(payload, &pl); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return decodeEnvelope(payload)
		}
		return pushFields{}, err
	}
	return pushFields{
		fullName: pl.Repository.FullName,
		cloneURL: pl.Repository.CloneURL,
		ref:      pl.Ref,
		before:   pl.Before,
		after:    pl.After,
	}, nil
}

func decodeEnvelope(payload []byte) (pushFields, error) {
	var env pushEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return pushFields{}, err
	}
	clone := env.Repository.CloneURL
	if clone == "" {
		clone = env.Repository.GitHTTPURL
	}
	return pushFields{
		fullName: env.Repository.FullName,
		cloneURL: clone,
		ref:      env.Ref,
		before:   env.Before,
		after:    env.After,
	}, nil
}
